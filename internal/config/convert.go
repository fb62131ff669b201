package config

import (
	"os"
	"time"

	"github.com/thinkaloud/thinkaloud/internal/injection"
	"github.com/thinkaloud/thinkaloud/internal/llm"
	"github.com/thinkaloud/thinkaloud/internal/notify"
	"github.com/thinkaloud/thinkaloud/internal/recording"
	"github.com/thinkaloud/thinkaloud/internal/transport"
)

var providerEnvVars = map[string]string{
	"openai": "OPENAI_API_KEY",
	"groq":   "GROQ_API_KEY",
}

func (c *Config) ToRecordingConfig() recording.Config {
	return recording.Config{
		SampleRate:        c.Recording.SampleRate,
		Channels:          c.Recording.Channels,
		Format:            c.Recording.Format,
		FrameSamples:      c.Recording.FrameSamples,
		Device:            c.Recording.Device,
		ChannelBufferSize: c.Recording.ChannelBufferSize,
	}
}

func (c *Config) ToTransportConfig() transport.Config {
	return transport.Config{
		URL:                  c.Transport.URL,
		SessionParam:         c.Transport.SessionParam,
		Language:             c.Transport.Language,
		Encoding:             c.Transport.Encoding,
		WAVInterval:          c.Transport.WAVInterval,
		ConnectTimeout:       c.Transport.ConnectTimeout,
		MaxReconnectAttempts: c.Transport.MaxReconnectAttempts,
		RetryDelays:          append([]time.Duration(nil), c.Transport.RetryDelays...),
		StableAfter:          c.Transport.StableAfter,
	}
}

func (c *Config) ToInjectionConfig() injection.Config {
	return injection.Config{
		Backends: append([]string(nil), c.Injection.Backends...),
		Timeout:  c.Injection.Timeout,
	}
}

// ToLLMConfig returns the LLM adapter configuration
func (c *Config) ToLLMConfig() llm.Config {
	return llm.Config{
		Provider:         c.LLM.Provider,
		APIKey:           c.resolveAPIKey(c.LLM.Provider),
		Model:            c.LLM.Model,
		BaseURL:          c.LLM.BaseURL,
		Temperature:      c.LLM.Temperature,
		Timeout:          c.LLM.Timeout,
		AffirmativeToken: c.Feedback.AffirmativeToken,
	}
}

// ToNotifier builds the notifier for the notifications section.
func (c *Config) ToNotifier() notify.Notifier {
	if !c.Notifications.Enabled {
		return notify.Nop{}
	}
	return notify.New(c.Notifications.Type, c.Notifications.Messages.Resolve())
}

// NeedsLLM reports whether the daemon classifies and corrects locally.
func (c *Config) NeedsLLM() bool {
	return c.Feedback.Mode != "backend"
}

// resolveAPIKey prefers [providers.<name>] and falls back to the
// provider's environment variable.
func (c *Config) resolveAPIKey(providerName string) string {
	if c.Providers != nil {
		if pc, ok := c.Providers[providerName]; ok && pc.APIKey != "" {
			return pc.APIKey
		}
	}
	if envVar := providerEnvVars[providerName]; envVar != "" {
		return os.Getenv(envVar)
	}
	return ""
}
