package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from an optional YAML file, then applies
// environment variables on top. Environment always wins so deployments can
// override a checked-in config file.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader using the default config file path.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		path:      "config.yaml",
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the YAML config file path (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// Result captures the loaded configuration and its origin.
type Result struct {
	Config *Config
	Path   string
}

// Load builds the configuration: defaults, then the YAML file if present,
// then environment overrides, then validation. Validation failure is
// returned to the caller, which treats it as fatal.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("no .env file found, using system environment")
		}
	}

	cfg := Defaults()
	origin := "defaults"

	if data, err := os.ReadFile(l.path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", l.path, err)
		}
		origin = l.path
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: origin}, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Camera.RTSPURL, "RTSP_URL")
	setSeconds(&cfg.Camera.Timeout, "RTSP_TIMEOUT")

	setString(&cfg.Detector.ModelPath, "DETECTOR_MODEL")
	setString(&cfg.Detector.ConfigPath, "DETECTOR_CONFIG")
	setFloat(&cfg.Detector.Confidence, "DETECTOR_CONFIDENCE")

	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.ModelName, "LLM_MODEL")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.APIKey, "OPENAI_API_KEY")
	setFloat(&cfg.LLM.Temperature, "LLM_TEMPERATURE")
	setInt(&cfg.LLM.MaxTokens, "LLM_MAX_TOKENS")
	setSeconds(&cfg.LLM.Timeout, "LLM_TIMEOUT")
	setInt(&cfg.LLM.MaxRetries, "MAX_RETRIES")
	setSeconds(&cfg.LLM.RetryDelay, "RETRY_DELAY")
	setInt64(&cfg.LLM.MaxImageSize, "MAX_IMAGE_SIZE")

	if v, ok := os.LookupEnv("NOTIFY_TARGETS"); ok {
		targets := make([]string, 0, 2)
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				targets = append(targets, t)
			}
		}
		cfg.Notify.Targets = targets
	}
	setString(&cfg.Notify.MessageTemplate, "BROADCAST_MESSAGE_TEMPLATE")
	setSeconds(&cfg.Notify.MinInterval, "MIN_NOTIFY_INTERVAL")
	setString(&cfg.Notify.DeviceIP, "GOOGLE_DEVICE_IP")
	setFloat(&cfg.Notify.Volume, "BROADCAST_VOLUME")
	setSeconds(&cfg.Notify.CastTimeout, "CAST_TIMEOUT")
	setString(&cfg.Notify.Voice, "TTS_VOICE")
	setString(&cfg.Notify.PlayerCmd, "PLAYER_CMD")
	setString(&cfg.Notify.AudioDir, "AUDIO_DIR")

	setString(&cfg.Storage.ImagesDir, "IMAGES_DIR")
	setInt(&cfg.Storage.MaxImages, "MAX_IMAGES")
	setString(&cfg.Storage.EventsFile, "EVENTS_FILE")

	setSeconds(&cfg.Pipeline.CaptureInterval, "CAPTURE_INTERVAL")
	setInt(&cfg.Pipeline.MaxConcurrentTasks, "MAX_CONCURRENT_TASKS")
	setSeconds(&cfg.Pipeline.DrainTimeout, "DRAIN_TIMEOUT")

	setBool(&cfg.Web.Enabled, "WEB_ENABLED")
	setInt(&cfg.Web.Port, "WEB_PORT")
	setString(&cfg.Web.StaticDir, "WEB_STATIC_DIR")

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Dir, "LOG_DIR")
	setString(&cfg.Log.File, "LOG_FILE")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt64(dst *int64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

// setSeconds parses an integer number of seconds, the unit the environment
// keys are documented in.
func setSeconds(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}
