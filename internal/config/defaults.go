package config

import "time"

// DefaultConfig returns the configuration written on first start.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
		Recording: RecordingConfig{
			SampleRate:        16000,
			Channels:          1,
			Format:            "f32le",
			FrameSamples:      4096,
			ChannelBufferSize: 30,
		},
		Transport: TransportConfig{
			URL:                  "ws://localhost:8000/ws",
			SessionParam:         "user_id",
			Language:             "ja",
			Encoding:             "pcm16",
			WAVInterval:          250 * time.Millisecond,
			ConnectTimeout:       5 * time.Second,
			MaxReconnectAttempts: 3,
			RetryDelays:          []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
			StableAfter:          10 * time.Second,
		},
		Feedback: FeedbackConfig{
			Mode:             "client",
			AffirmativeToken: "yes",
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			Temperature: 0.2,
			Timeout:     30 * time.Second,
		},
		Providers: make(map[string]ProviderConfig),
		Notifications: NotificationsConfig{
			Enabled: true,
			Type:    "desktop",
		},
		Injection: InjectionConfig{
			Backends: []string{"clipboard"},
			Timeout:  3 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
	}
}
