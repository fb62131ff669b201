package config

import (
	"fmt"
	"net/url"

	"github.com/thinkaloud/thinkaloud/internal/language"
)

func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateRecording(); err != nil {
		return err
	}
	if err := c.validateTransport(); err != nil {
		return err
	}

	switch c.Feedback.Mode {
	case "client", "backend":
	default:
		return fmt.Errorf("invalid feedback.mode: %s (must be client or backend)", c.Feedback.Mode)
	}
	if c.Feedback.AffirmativeToken == "" {
		return fmt.Errorf("invalid feedback.affirmative_token: empty")
	}

	if c.NeedsLLM() {
		if err := c.validateLLM(); err != nil {
			return err
		}
	}

	validTypes := map[string]bool{"desktop": true, "log": true, "none": true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}

	validBackends := map[string]bool{"clipboard": true, "wtype": true}
	for _, b := range c.Injection.Backends {
		if !validBackends[b] {
			return fmt.Errorf("invalid injection.backends entry: %s (must be clipboard or wtype)", b)
		}
	}
	if len(c.Injection.Backends) > 0 && c.Injection.Timeout <= 0 {
		return fmt.Errorf("invalid injection.timeout: %v", c.Injection.Timeout)
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.listen required when metrics.enabled = true")
	}

	return nil
}

func (c *Config) validateBackend() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid backend.base_url: %q", c.Backend.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid backend.base_url: scheme %q (must be http or https)", u.Scheme)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("invalid backend.timeout: %v", c.Backend.Timeout)
	}
	return nil
}

func (c *Config) validateRecording() error {
	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("invalid recording.sample_rate: %d", c.Recording.SampleRate)
	}
	if c.Recording.Channels != 1 {
		return fmt.Errorf("invalid recording.channels: %d (the backend expects mono)", c.Recording.Channels)
	}
	if c.Recording.Format != "f32le" && c.Recording.Format != "s16le" {
		return fmt.Errorf("invalid recording.format: %q (must be f32le or s16le)", c.Recording.Format)
	}
	if c.Recording.FrameSamples <= 0 {
		return fmt.Errorf("invalid recording.frame_samples: %d", c.Recording.FrameSamples)
	}
	if c.Recording.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid recording.channel_buffer_size: %d", c.Recording.ChannelBufferSize)
	}
	return nil
}

func (c *Config) validateTransport() error {
	t := c.Transport
	u, err := url.Parse(t.URL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid transport.url: %q", t.URL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid transport.url: scheme %q (must be ws or wss)", u.Scheme)
	}
	if t.SessionParam == "" {
		return fmt.Errorf("invalid transport.session_param: empty")
	}
	if !language.IsValidCode(t.Language) {
		return fmt.Errorf("invalid transport.language: %s (use empty string to omit or ISO-639-1 codes like 'ja', 'en')", t.Language)
	}

	switch t.Encoding {
	case "pcm16":
	case "wav":
		if t.WAVInterval <= 0 {
			return fmt.Errorf("invalid transport.wav_interval: %v", t.WAVInterval)
		}
	default:
		return fmt.Errorf("invalid transport.encoding: %s (must be pcm16 or wav)", t.Encoding)
	}

	if t.ConnectTimeout <= 0 {
		return fmt.Errorf("invalid transport.connect_timeout: %v", t.ConnectTimeout)
	}
	if t.MaxReconnectAttempts < 0 {
		return fmt.Errorf("invalid transport.max_reconnect_attempts: %d", t.MaxReconnectAttempts)
	}
	for i, d := range t.RetryDelays {
		if d <= 0 {
			return fmt.Errorf("invalid transport.retry_delays[%d]: %v", i, d)
		}
	}
	return nil
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case "openai", "groq":
	case "":
		return fmt.Errorf("llm.provider required when feedback.mode = client")
	default:
		return fmt.Errorf("invalid llm.provider: %s (must be openai or groq)", c.LLM.Provider)
	}

	if c.resolveAPIKey(c.LLM.Provider) == "" {
		switch c.LLM.Provider {
		case "openai":
			return fmt.Errorf("OpenAI API key required for LLM: not found in config (providers.openai.api_key) or environment variable (OPENAI_API_KEY)")
		case "groq":
			return fmt.Errorf("Groq API key required for LLM: not found in config (providers.groq.api_key) or environment variable (GROQ_API_KEY)")
		}
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("invalid llm.temperature: %v (must be between 0 and 2)", c.LLM.Temperature)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("invalid llm.timeout: %v", c.LLM.Timeout)
	}
	return nil
}
