package config

import "time"

// Defaults returns the baseline configuration before file and environment
// overrides are applied.
func Defaults() *Config {
	return &Config{
		Camera: CameraConfig{
			Timeout: 10 * time.Second,
		},
		Detector: DetectorConfig{
			ModelPath:  "models/detector.pb",
			ConfigPath: "models/detector.pbtxt",
			Confidence: 0.5,
		},
		LLM: LLMConfig{
			Provider:     "openai",
			ModelName:    "gpt-4o-mini",
			Temperature:  0.1,
			MaxTokens:    100,
			Timeout:      30 * time.Second,
			MaxRetries:   3,
			RetryDelay:   2 * time.Second,
			MaxImageSize: 5 * 1024 * 1024,
		},
		Notify: NotifyConfig{
			Targets:         []string{TargetLocalSpeaker},
			MessageTemplate: "Person detected: {desc}",
			MinInterval:     5 * time.Second,
			Volume:          1.0,
			CastTimeout:     10 * time.Second,
			Voice:           "en-US-AriaNeural",
			PlayerCmd:       "mpg123",
			AudioDir:        "audio",
		},
		Storage: StorageConfig{
			ImagesDir: "images",
			MaxImages: 100,
		},
		Pipeline: PipelineConfig{
			CaptureInterval:    10 * time.Second,
			MaxConcurrentTasks: 5,
			DrainTimeout:       10 * time.Second,
		},
		Web: WebConfig{
			Enabled:   true,
			Port:      8081,
			StaticDir: "web",
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "logs",
			File:  "sentrycam.log",
		},
	}
}
