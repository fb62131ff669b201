package config

import (
	"reflect"
	"time"

	"github.com/thinkaloud/thinkaloud/internal/notify"
)

type Config struct {
	Session       SessionConfig             `toml:"session"`
	Backend       BackendConfig             `toml:"backend"`
	Recording     RecordingConfig           `toml:"recording"`
	Transport     TransportConfig           `toml:"transport"`
	Feedback      FeedbackConfig            `toml:"feedback"`
	LLM           LLMConfig                 `toml:"llm"`
	Providers     map[string]ProviderConfig `toml:"providers"`
	Notifications NotificationsConfig       `toml:"notifications"`
	Injection     InjectionConfig           `toml:"injection"`
	Metrics       MetricsConfig             `toml:"metrics"`
}

// SessionConfig identifies the user towards the backend.
type SessionConfig struct {
	ID string `toml:"id"`
}

// BackendConfig is the HTTP side of the backend (display-text registration).
type BackendConfig struct {
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`
}

type RecordingConfig struct {
	SampleRate        int    `toml:"sample_rate"`
	Channels          int    `toml:"channels"`
	Format            string `toml:"format"` // "f32le" or "s16le"
	FrameSamples      int    `toml:"frame_samples"`
	Device            string `toml:"device"`
	ChannelBufferSize int    `toml:"channel_buffer_size"`
}

type TransportConfig struct {
	URL                  string          `toml:"url"`
	SessionParam         string          `toml:"session_param"`
	Language             string          `toml:"language"`
	Encoding             string          `toml:"encoding"` // "pcm16" or "wav"
	WAVInterval          time.Duration   `toml:"wav_interval"`
	ConnectTimeout       time.Duration   `toml:"connect_timeout"`
	MaxReconnectAttempts int             `toml:"max_reconnect_attempts"`
	RetryDelays          []time.Duration `toml:"retry_delays"`
	StableAfter          time.Duration   `toml:"stable_after"`
}

type FeedbackConfig struct {
	Mode             string `toml:"mode"` // "client" or "backend"
	AffirmativeToken string `toml:"affirmative_token"`
}

type LLMConfig struct {
	Provider    string        `toml:"provider"`
	Model       string        `toml:"model"`
	BaseURL     string        `toml:"base_url"`
	Temperature float32       `toml:"temperature"`
	Timeout     time.Duration `toml:"timeout"`
}

// ProviderConfig holds API key for a provider
type ProviderConfig struct {
	APIKey string `toml:"api_key"`
}

type NotificationsConfig struct {
	Enabled  bool           `toml:"enabled"`
	Type     string         `toml:"type"` // "desktop", "log", "none"
	Messages MessagesConfig `toml:"messages"`
}

// InjectionConfig controls where `complete` delivers the final text.
type InjectionConfig struct {
	Backends []string      `toml:"backends"` // "clipboard", "wtype"; empty disables
	Timeout  time.Duration `toml:"timeout"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

type MessageConfig struct {
	Title string `toml:"title"`
	Body  string `toml:"body"`
}

type MessagesConfig struct {
	CorrectionStarted MessageConfig `toml:"correction_started"`
	CorrectionStopped MessageConfig `toml:"correction_stopped"`
	PlanReady         MessageConfig `toml:"plan_ready"`
	TextUpdated       MessageConfig `toml:"text_updated"`
	NoEditNeeded      MessageConfig `toml:"no_edit_needed"`
	ConnectionLost    MessageConfig `toml:"connection_lost"`
	CorrectionFailed  MessageConfig `toml:"correction_failed"`
	ConfigReloaded    MessageConfig `toml:"config_reloaded"`
	SessionComplete   MessageConfig `toml:"session_complete"`
}

// Resolve merges user config with defaults from MessageDefs
func (m *MessagesConfig) Resolve() map[notify.MessageType]notify.Message {
	result := make(map[notify.MessageType]notify.Message)

	v := reflect.ValueOf(m).Elem()
	t := v.Type()
	tagToField := make(map[string]int)
	for i := 0; i < t.NumField(); i++ {
		tagToField[t.Field(i).Tag.Get("toml")] = i
	}

	for _, def := range notify.MessageDefs {
		msg := notify.Message{
			Title:   def.DefaultTitle,
			Body:    def.DefaultBody,
			IsError: def.IsError,
		}
		if idx, ok := tagToField[def.ConfigKey]; ok {
			userMsg := v.Field(idx).Interface().(MessageConfig)
			if userMsg.Title != "" {
				msg.Title = userMsg.Title
			}
			if userMsg.Body != "" {
				msg.Body = userMsg.Body
			}
		}
		result[def.Type] = msg
	}
	return result
}
