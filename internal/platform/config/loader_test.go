package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_DefaultsWithEnvOnly(t *testing.T) {
	t.Setenv("RTSP_URL", "rtsp://192.168.1.10:554/stream")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	result, err := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.NoError(t, err)

	cfg := result.Config
	assert.Equal(t, "rtsp://192.168.1.10:554/stream", cfg.Camera.RTSPURL)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.ModelName)
	assert.Equal(t, 5, cfg.Pipeline.MaxConcurrentTasks)
	assert.Equal(t, []string{TargetLocalSpeaker}, cfg.Notify.Targets)
	assert.Equal(t, "Person detected: {desc}", cfg.Notify.MessageTemplate)
	assert.Equal(t, "defaults", result.Path)
}

func TestLoader_FileThenEnvOverride(t *testing.T) {
	path := writeConfigFile(t, `
camera:
  rtsp_url: rtsp://file-host/stream
llm:
  model_name: gpt-4o
  api_key: sk-from-file
pipeline:
  max_concurrent_tasks: 3
`)

	t.Setenv("RTSP_URL", "rtsp://env-host/stream")
	t.Setenv("MAX_CONCURRENT_TASKS", "8")

	result, err := NewLoader().WithDotEnv(false).WithPath(path).Load()
	require.NoError(t, err)

	cfg := result.Config
	assert.Equal(t, "rtsp://env-host/stream", cfg.Camera.RTSPURL)
	assert.Equal(t, "gpt-4o", cfg.LLM.ModelName)
	assert.Equal(t, 8, cfg.Pipeline.MaxConcurrentTasks)
	assert.Equal(t, path, result.Path)
}

func TestLoader_NotifyTargetsFromEnv(t *testing.T) {
	t.Setenv("RTSP_URL", "rtsp://cam/stream")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("NOTIFY_TARGETS", " local_speaker , smart_speaker ")
	t.Setenv("GOOGLE_DEVICE_IP", "192.168.1.42")

	result, err := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{TargetLocalSpeaker, TargetSmartSpeaker}, result.Config.Notify.Targets)
}

func TestLoader_WebEnabledFromEnv(t *testing.T) {
	t.Setenv("RTSP_URL", "rtsp://cam/stream")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("WEB_ENABLED", "false")

	result, err := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.NoError(t, err)
	assert.False(t, result.Config.Web.Enabled)
}

func TestLoader_SecondsEnvParsing(t *testing.T) {
	t.Setenv("RTSP_URL", "rtsp://cam/stream")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("CAPTURE_INTERVAL", "30")
	t.Setenv("RETRY_DELAY", "5")

	result, err := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "missing.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, "30s", result.Config.Pipeline.CaptureInterval.String())
	assert.Equal(t, "5s", result.Config.LLM.RetryDelay.String())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Defaults()
		cfg.Camera.RTSPURL = "rtsp://cam/stream"
		cfg.LLM.APIKey = "sk-test"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing rtsp url", func(c *Config) { c.Camera.RTSPURL = "" }, "RTSP_URL is required"},
		{"bad rtsp scheme", func(c *Config) { c.Camera.RTSPURL = "ftp://cam" }, "RTSP_URL must start with"},
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }, "OPENAI_API_KEY is required"},
		{"api key optional for other providers", func(c *Config) {
			c.LLM.Provider = "ollama"
			c.LLM.APIKey = ""
		}, ""},
		{"zero capture interval", func(c *Config) { c.Pipeline.CaptureInterval = 0 }, "CAPTURE_INTERVAL must be positive"},
		{"zero concurrency", func(c *Config) { c.Pipeline.MaxConcurrentTasks = 0 }, "MAX_CONCURRENT_TASKS must be positive"},
		{"temperature out of range", func(c *Config) { c.LLM.Temperature = 2.5 }, "LLM_TEMPERATURE"},
		{"zero retries", func(c *Config) { c.LLM.MaxRetries = 0 }, "MAX_RETRIES must be positive"},
		{"volume out of range", func(c *Config) { c.Notify.Volume = 1.5 }, "BROADCAST_VOLUME"},
		{"template missing placeholder", func(c *Config) { c.Notify.MessageTemplate = "someone is here" }, "{desc}"},
		{"unknown target", func(c *Config) { c.Notify.Targets = []string{"pager"} }, "unknown notification target"},
		{"smart speaker without device ip", func(c *Config) {
			c.Notify.Targets = []string{TargetSmartSpeaker}
			c.Notify.DeviceIP = ""
		}, "GOOGLE_DEVICE_IP is required"},
		{"zero max images", func(c *Config) { c.Storage.MaxImages = 0 }, "MAX_IMAGES must be positive"},
		{"invalid port", func(c *Config) { c.Web.Port = 70000 }, "WEB_PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Pipeline.CaptureInterval = 0
	cfg.Storage.MaxImages = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RTSP_URL is required")
	assert.Contains(t, err.Error(), "CAPTURE_INTERVAL must be positive")
	assert.Contains(t, err.Error(), "MAX_IMAGES must be positive")
}
