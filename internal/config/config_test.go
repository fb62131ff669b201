package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/thinkaloud/thinkaloud/internal/notify"
	"github.com/thinkaloud/thinkaloud/internal/testutil"
)

// createTestConfig returns a valid configuration for testing
func createTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.Session.ID = "user-1"
	cfg.Providers["openai"] = ProviderConfig{APIKey: "test-api-key"}
	cfg.Notifications.Type = "log"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{name: "valid config", modify: func(c *Config) {}},
		{
			name: "backend mode needs no llm key",
			modify: func(c *Config) {
				c.Feedback.Mode = "backend"
				c.Providers = map[string]ProviderConfig{}
				c.LLM.Provider = ""
			},
		},
		{name: "bad backend url", modify: func(c *Config) { c.Backend.BaseURL = "localhost" }, wantErr: "backend.base_url"},
		{name: "ftp backend url", modify: func(c *Config) { c.Backend.BaseURL = "ftp://host" }, wantErr: "backend.base_url"},
		{name: "zero backend timeout", modify: func(c *Config) { c.Backend.Timeout = 0 }, wantErr: "backend.timeout"},
		{name: "stereo", modify: func(c *Config) { c.Recording.Channels = 2 }, wantErr: "recording.channels"},
		{name: "bad format", modify: func(c *Config) { c.Recording.Format = "s24" }, wantErr: "recording.format"},
		{name: "zero frame samples", modify: func(c *Config) { c.Recording.FrameSamples = 0 }, wantErr: "recording.frame_samples"},
		{name: "http transport url", modify: func(c *Config) { c.Transport.URL = "http://localhost/ws" }, wantErr: "transport.url"},
		{name: "empty session param", modify: func(c *Config) { c.Transport.SessionParam = "" }, wantErr: "transport.session_param"},
		{name: "unknown language", modify: func(c *Config) { c.Transport.Language = "xx" }, wantErr: "transport.language"},
		{name: "empty language allowed", modify: func(c *Config) { c.Transport.Language = "" }},
		{name: "bad encoding", modify: func(c *Config) { c.Transport.Encoding = "opus" }, wantErr: "transport.encoding"},
		{
			name: "wav without interval",
			modify: func(c *Config) {
				c.Transport.Encoding = "wav"
				c.Transport.WAVInterval = 0
			},
			wantErr: "transport.wav_interval",
		},
		{name: "negative attempts", modify: func(c *Config) { c.Transport.MaxReconnectAttempts = -1 }, wantErr: "max_reconnect_attempts"},
		{name: "zero retry delay", modify: func(c *Config) { c.Transport.RetryDelays = []time.Duration{time.Second, 0} }, wantErr: "retry_delays[1]"},
		{name: "bad feedback mode", modify: func(c *Config) { c.Feedback.Mode = "both" }, wantErr: "feedback.mode"},
		{name: "empty affirmative token", modify: func(c *Config) { c.Feedback.AffirmativeToken = "" }, wantErr: "affirmative_token"},
		{name: "unknown llm provider", modify: func(c *Config) { c.LLM.Provider = "mistral" }, wantErr: "llm.provider"},
		{
			name:    "missing groq key",
			modify:  func(c *Config) { c.LLM.Provider = "groq" },
			wantErr: "GROQ_API_KEY",
		},
		{name: "temperature out of range", modify: func(c *Config) { c.LLM.Temperature = 3 }, wantErr: "llm.temperature"},
		{name: "unknown injection backend", modify: func(c *Config) { c.Injection.Backends = []string{"ydotool"} }, wantErr: "injection.backends"},
		{name: "injection disabled", modify: func(c *Config) { c.Injection.Backends = nil; c.Injection.Timeout = 0 }},
		{name: "zero injection timeout", modify: func(c *Config) { c.Injection.Timeout = 0 }, wantErr: "injection.timeout"},
		{name: "bad notifications type", modify: func(c *Config) { c.Notifications.Type = "email" }, wantErr: "notifications.type"},
		{
			name: "metrics without listen",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Listen = ""
			},
			wantErr: "metrics.listen",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			t.Setenv("GROQ_API_KEY", "")

			cfg := createTestConfig()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_APIKeyFromEnv(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "env-key")

	cfg := createTestConfig()
	cfg.LLM.Provider = "groq"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tempDir)

	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	expectedPath := filepath.Join(tempDir, "thinkaloud", "config.toml")
	if path != expectedPath {
		t.Errorf("GetConfigPath() = %s, want %s", path, expectedPath)
	}
	if _, err := os.Stat(filepath.Dir(path)); os.IsNotExist(err) {
		t.Errorf("GetConfigPath() did not create config directory")
	}
}

func TestConfig_Load(t *testing.T) {
	t.Run("creates default config when none exists", func(t *testing.T) {
		tempDir := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", tempDir)

		config, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if config.Transport.URL != "ws://localhost:8000/ws" {
			t.Errorf("Transport.URL = %q", config.Transport.URL)
		}

		configPath := filepath.Join(tempDir, "thinkaloud", "config.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			t.Errorf("Load() did not create config file")
		}
	})

	t.Run("partial config keeps defaults", func(t *testing.T) {
		path := testutil.CreateTempConfigFile(t, `[session]
id = "user-42"

[transport]
url = "wss://example.com/ws"
retry_delays = ["500ms", "1s"]

[feedback]
mode = "backend"

[providers.groq]
api_key = "gk"
`)

		config, err := LoadFile(path)
		if err != nil {
			t.Fatalf("LoadFile() error = %v", err)
		}
		if config.Session.ID != "user-42" {
			t.Errorf("Session.ID = %q", config.Session.ID)
		}
		if config.Transport.URL != "wss://example.com/ws" {
			t.Errorf("Transport.URL = %q", config.Transport.URL)
		}
		if got := config.Transport.RetryDelays; len(got) != 2 || got[0] != 500*time.Millisecond {
			t.Errorf("RetryDelays = %v", got)
		}
		if config.Transport.SessionParam != "user_id" {
			t.Errorf("SessionParam = %q, want default", config.Transport.SessionParam)
		}
		if config.Transport.ConnectTimeout != 5*time.Second {
			t.Errorf("ConnectTimeout = %v, want default", config.Transport.ConnectTimeout)
		}
		if config.Feedback.Mode != "backend" {
			t.Errorf("Feedback.Mode = %q", config.Feedback.Mode)
		}
		if config.Providers["groq"].APIKey != "gk" {
			t.Errorf("Providers = %v", config.Providers)
		}
	})

	t.Run("invalid toml", func(t *testing.T) {
		path := testutil.CreateTempConfigFile(t, "[transport\nurl = ")
		if _, err := LoadFile(path); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("LoadFile() error = %v, want ErrConfigNotFound", err)
		}
	})
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := createTestConfig()
	cfg.Transport.RetryDelays = []time.Duration{250 * time.Millisecond, time.Second}
	cfg.Notifications.Messages.PlanReady = MessageConfig{Body: "提案があります"}

	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %v, want 0600", perm)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if loaded.Session.ID != "user-1" {
		t.Errorf("Session.ID = %q", loaded.Session.ID)
	}
	if loaded.Providers["openai"].APIKey != "test-api-key" {
		t.Errorf("provider key lost: %v", loaded.Providers)
	}
	if got := loaded.Transport.RetryDelays; len(got) != 2 || got[1] != time.Second {
		t.Errorf("RetryDelays = %v", got)
	}
	if loaded.Notifications.Messages.PlanReady.Body != "提案があります" {
		t.Errorf("PlanReady = %+v", loaded.Notifications.Messages.PlanReady)
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("round-tripped config invalid: %v", err)
	}
}

func TestConfig_ConversionMethods(t *testing.T) {
	cfg := createTestConfig()
	cfg.Transport.Language = "en"

	rc := cfg.ToRecordingConfig()
	if rc.SampleRate != 16000 || rc.FrameSamples != 4096 || rc.Format != "f32le" {
		t.Errorf("ToRecordingConfig() = %+v", rc)
	}

	tc := cfg.ToTransportConfig()
	if tc.URL != cfg.Transport.URL || tc.Language != "en" || tc.MaxReconnectAttempts != 3 {
		t.Errorf("ToTransportConfig() = %+v", tc)
	}
	tc.RetryDelays[0] = time.Hour
	if cfg.Transport.RetryDelays[0] == time.Hour {
		t.Error("ToTransportConfig() shares the retry delay slice")
	}

	lc := cfg.ToLLMConfig()
	if lc.Provider != "openai" || lc.APIKey != "test-api-key" || lc.Model != "gpt-4o" {
		t.Errorf("ToLLMConfig() = %+v", lc)
	}
	if lc.AffirmativeToken != "yes" {
		t.Errorf("AffirmativeToken = %q", lc.AffirmativeToken)
	}

	ic := cfg.ToInjectionConfig()
	if len(ic.Backends) != 1 || ic.Backends[0] != "clipboard" || ic.Timeout != 3*time.Second {
		t.Errorf("ToInjectionConfig() = %+v", ic)
	}
}

func TestConfig_ResolveAPIKey(t *testing.T) {
	tests := []struct {
		name      string
		providers map[string]ProviderConfig
		env       string
		want      string
	}{
		{"config wins", map[string]ProviderConfig{"openai": {APIKey: "cfg"}}, "env", "cfg"},
		{"env fallback", map[string]ProviderConfig{}, "env", "env"},
		{"nil providers", nil, "env", "env"},
		{"nothing", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", tt.env)
			cfg := createTestConfig()
			cfg.Providers = tt.providers
			if got := cfg.ToLLMConfig().APIKey; got != tt.want {
				t.Errorf("APIKey = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_ToNotifier(t *testing.T) {
	cfg := createTestConfig()
	if _, ok := cfg.ToNotifier().(notify.Log); !ok {
		t.Errorf("ToNotifier() = %T, want notify.Log", cfg.ToNotifier())
	}

	cfg.Notifications.Enabled = false
	if _, ok := cfg.ToNotifier().(notify.Nop); !ok {
		t.Errorf("disabled ToNotifier() = %T, want notify.Nop", cfg.ToNotifier())
	}
}

func TestMessagesConfig_Resolve(t *testing.T) {
	cfg := createTestConfig()
	msgs := cfg.Notifications.Messages.Resolve()

	if len(msgs) != len(notify.MessageDefs) {
		t.Fatalf("Resolve() returned %d messages, want %d", len(msgs), len(notify.MessageDefs))
	}
	if msgs[notify.MsgConnectionLost].IsError != true {
		t.Error("MsgConnectionLost should be an error message")
	}

	cfg.Notifications.Messages = MessagesConfig{
		CorrectionStarted: MessageConfig{Title: "Custom Title", Body: "Custom Body"},
		CorrectionFailed:  MessageConfig{Body: "もう一度お願いします"},
	}
	msgs = cfg.Notifications.Messages.Resolve()

	if msgs[notify.MsgCorrectionStarted].Title != "Custom Title" || msgs[notify.MsgCorrectionStarted].Body != "Custom Body" {
		t.Errorf("MsgCorrectionStarted = %+v", msgs[notify.MsgCorrectionStarted])
	}
	if msgs[notify.MsgCorrectionFailed].Body != "もう一度お願いします" {
		t.Errorf("MsgCorrectionFailed body = %q", msgs[notify.MsgCorrectionFailed].Body)
	}
	if msgs[notify.MsgCorrectionFailed].Title != "thinkaloud" {
		t.Errorf("MsgCorrectionFailed title = %q, want default", msgs[notify.MsgCorrectionFailed].Title)
	}
	if !msgs[notify.MsgCorrectionFailed].IsError {
		t.Error("override must keep IsError")
	}
}

func TestManager_Reload(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-api-key")
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveTo(path, createTestConfig()); err != nil {
		t.Fatal(err)
	}

	m, err := NewManagerFromFile(path)
	if err != nil {
		t.Fatalf("NewManagerFromFile() error = %v", err)
	}

	reloaded := make(chan *Config, 4)
	m.OnReload(func(c *Config) { reloaded <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.StartWatching(ctx); err != nil {
		t.Fatalf("StartWatching() error = %v", err)
	}
	defer m.Stop()

	// invalid configs are not adopted
	broken := createTestConfig()
	broken.Feedback.Mode = "both"
	if err := SaveTo(path, broken); err != nil {
		t.Fatal(err)
	}

	next := createTestConfig()
	next.Feedback.Mode = "backend"
	if err := SaveTo(path, next); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(3 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if c.Feedback.Mode == "both" {
				t.Fatal("invalid config was reloaded")
			}
			if c.Feedback.Mode != "backend" {
				continue
			}
			if got := m.GetConfig().Feedback.Mode; got != "backend" {
				t.Errorf("GetConfig().Feedback.Mode = %q", got)
			}
			return
		case <-timeout:
			t.Fatal("config was not reloaded")
		}
	}
}
