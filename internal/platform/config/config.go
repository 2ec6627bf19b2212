package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	LLM      LLMConfig      `yaml:"llm"`
	Notify   NotifyConfig   `yaml:"notify"`
	Storage  StorageConfig  `yaml:"storage"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Web      WebConfig      `yaml:"web"`
	Log      LogConfig      `yaml:"log"`
}

type CameraConfig struct {
	RTSPURL string        `yaml:"rtsp_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type DetectorConfig struct {
	ModelPath  string  `yaml:"model_path"`
	ConfigPath string  `yaml:"config_path"`
	Confidence float64 `yaml:"confidence"`
}

type LLMConfig struct {
	Provider     string        `yaml:"provider"`
	ModelName    string        `yaml:"model_name"`
	BaseURL      string        `yaml:"url"`
	APIKey       string        `yaml:"api_key"`
	Temperature  float64       `yaml:"temperature"`
	MaxTokens    int           `yaml:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	MaxImageSize int64         `yaml:"max_image_size"`
}

type NotifyConfig struct {
	Targets         []string      `yaml:"targets"`
	MessageTemplate string        `yaml:"message_template"`
	MinInterval     time.Duration `yaml:"min_interval"`
	DeviceIP        string        `yaml:"device_ip"`
	Volume          float64       `yaml:"volume"`
	CastTimeout     time.Duration `yaml:"cast_timeout"`
	Voice           string        `yaml:"voice"`
	PlayerCmd       string        `yaml:"player_cmd"`
	AudioDir        string        `yaml:"audio_dir"`
}

type StorageConfig struct {
	ImagesDir  string `yaml:"images_dir"`
	MaxImages  int    `yaml:"max_images"`
	EventsFile string `yaml:"events_file"`
}

type PipelineConfig struct {
	CaptureInterval    time.Duration `yaml:"capture_interval"`
	MaxConcurrentTasks int           `yaml:"max_concurrent_tasks"`
	DrainTimeout       time.Duration `yaml:"drain_timeout"`
}

type WebConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// Target identifiers accepted in NotifyConfig.Targets.
const (
	TargetLocalSpeaker = "local_speaker"
	TargetSmartSpeaker = "smart_speaker"
)

var allowedSchemes = []string{"rtsp://", "http://", "https://"}

// Validate collects every configuration problem before the pipeline starts.
// A misconfigured system must not run silently, so the caller treats a
// non-nil error as fatal.
func (c *Config) Validate() error {
	var errs []string

	if c.Camera.RTSPURL == "" {
		errs = append(errs, "RTSP_URL is required")
	} else {
		valid := false
		for _, scheme := range allowedSchemes {
			if strings.HasPrefix(c.Camera.RTSPURL, scheme) {
				valid = true
				break
			}
		}
		if !valid {
			errs = append(errs, "RTSP_URL must start with rtsp://, http://, or https://")
		}
	}

	if c.Pipeline.CaptureInterval <= 0 {
		errs = append(errs, "CAPTURE_INTERVAL must be positive")
	}
	if c.Pipeline.MaxConcurrentTasks <= 0 {
		errs = append(errs, "MAX_CONCURRENT_TASKS must be positive")
	}

	if c.LLM.Provider == "openai" && c.LLM.APIKey == "" {
		errs = append(errs, "OPENAI_API_KEY is required for the openai provider")
	}
	if c.LLM.Temperature < 0.0 || c.LLM.Temperature > 2.0 {
		errs = append(errs, "LLM_TEMPERATURE must be between 0.0 and 2.0")
	}
	if c.LLM.MaxRetries <= 0 {
		errs = append(errs, "MAX_RETRIES must be positive")
	}

	if c.Notify.Volume < 0.0 || c.Notify.Volume > 1.0 {
		errs = append(errs, "BROADCAST_VOLUME must be between 0.0 and 1.0")
	}
	if !strings.Contains(c.Notify.MessageTemplate, "{desc}") {
		errs = append(errs, "BROADCAST_MESSAGE_TEMPLATE must contain a {desc} placeholder")
	}
	for _, target := range c.Notify.Targets {
		switch target {
		case TargetLocalSpeaker, TargetSmartSpeaker:
		default:
			errs = append(errs, fmt.Sprintf("unknown notification target %q", target))
		}
	}
	if c.smartSpeakerEnabled() && c.Notify.DeviceIP == "" {
		errs = append(errs, "GOOGLE_DEVICE_IP is required when the smart_speaker target is enabled")
	}

	if c.Storage.MaxImages <= 0 {
		errs = append(errs, "MAX_IMAGES must be positive")
	}

	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		errs = append(errs, "WEB_PORT must be a valid port")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) smartSpeakerEnabled() bool {
	for _, target := range c.Notify.Targets {
		if target == TargetSmartSpeaker {
			return true
		}
	}
	return false
}
