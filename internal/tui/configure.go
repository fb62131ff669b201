package tui

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/termenv"

	"github.com/thinkaloud/thinkaloud/internal/config"
	"github.com/thinkaloud/thinkaloud/internal/language"
)

// ConfigureResult holds the configuration result from the TUI
type ConfigureResult struct {
	Config    *config.Config
	Cancelled bool
}

// AllProviders is the list of supported LLM providers
var AllProviders = []string{"openai", "groq"}

var providerDisplayNames = map[string]string{
	"openai": "OpenAI",
	"groq":   "Groq",
}

// answers is the flat set of values the form edits.
type answers struct {
	SessionID    string
	BackendURL   string
	TransportURL string
	Language     string
	Encoding     string
	FeedbackMode string
	Provider     string
	Model        string
	APIKey       string
	Notify       string // "desktop", "log" or "none"
}

func answersFrom(cfg *config.Config) answers {
	a := answers{
		SessionID:    cfg.Session.ID,
		BackendURL:   cfg.Backend.BaseURL,
		TransportURL: cfg.Transport.URL,
		Language:     cfg.Transport.Language,
		Encoding:     cfg.Transport.Encoding,
		FeedbackMode: cfg.Feedback.Mode,
		Provider:     cfg.LLM.Provider,
		Model:        cfg.LLM.Model,
		Notify:       cfg.Notifications.Type,
	}
	if a.SessionID == "" {
		a.SessionID = uuid.NewString()
	}
	if a.Provider == "" {
		a.Provider = "openai"
	}
	if pc, ok := cfg.Providers[a.Provider]; ok {
		a.APIKey = pc.APIKey
	}
	if !cfg.Notifications.Enabled {
		a.Notify = "none"
	}
	return a
}

func (a answers) apply(cfg *config.Config) {
	cfg.Session.ID = strings.TrimSpace(a.SessionID)
	cfg.Backend.BaseURL = strings.TrimSpace(a.BackendURL)
	cfg.Transport.URL = strings.TrimSpace(a.TransportURL)
	cfg.Transport.Language = a.Language
	cfg.Transport.Encoding = a.Encoding
	cfg.Feedback.Mode = a.FeedbackMode

	if a.FeedbackMode == "client" {
		cfg.LLM.Provider = a.Provider
		cfg.LLM.Model = strings.TrimSpace(a.Model)
		if key := strings.TrimSpace(a.APIKey); key != "" {
			if cfg.Providers == nil {
				cfg.Providers = make(map[string]config.ProviderConfig)
			}
			cfg.Providers[a.Provider] = config.ProviderConfig{APIKey: key}
		}
	}

	if a.Notify == "none" {
		cfg.Notifications.Enabled = false
	} else {
		cfg.Notifications.Enabled = true
		cfg.Notifications.Type = a.Notify
	}
}

// Run starts the TUI configuration wizard
func Run(existing *config.Config) (*ConfigureResult, error) {
	cfg := existing
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	a := answersFrom(cfg)

	clearScreen()
	fmt.Println(Logo())
	fmt.Println()

	if err := buildForm(&a, cfg).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return &ConfigureResult{Cancelled: true}, nil
		}
		return nil, err
	}

	confirmed, err := showSummary(a)
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return &ConfigureResult{Cancelled: true}, nil
		}
		return nil, err
	}
	if !confirmed {
		return &ConfigureResult{Cancelled: true}, nil
	}

	a.apply(cfg)
	return &ConfigureResult{Config: cfg}, nil
}

func buildForm(a *answers, cfg *config.Config) *huh.Form {
	languageOptions := []huh.Option[string]{
		huh.NewOption(language.Unset.Name, language.Unset.Code),
	}
	for _, lang := range language.List() {
		languageOptions = append(languageOptions, huh.NewOption(language.Label(lang.Code), lang.Code))
	}

	providerOptions := make([]huh.Option[string], 0, len(AllProviders))
	for _, p := range AllProviders {
		providerOptions = append(providerOptions, huh.NewOption(providerDisplayNames[p], p))
	}

	keyDesc := "Leave empty to use the environment variable"
	if a.APIKey != "" {
		keyDesc = "Currently: " + maskAPIKey(a.APIKey) + ". Leave as is to keep it"
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Session ID").
				Description("Identifies you to the backend").
				Value(&a.SessionID).
				Validate(validateRequired),
			huh.NewInput().
				Title("Backend URL").
				Description("Receives the display text, e.g. http://localhost:8000").
				Value(&a.BackendURL).
				Validate(validateURL("http", "https")),
			huh.NewInput().
				Title("Streaming URL").
				Description("Speech transcription websocket, e.g. ws://localhost:8000/ws").
				Value(&a.TransportURL).
				Validate(validateURL("ws", "wss")),
		).Title("Backend"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Spoken language").
				Options(languageOptions...).
				Height(8).
				Value(&a.Language),
			huh.NewSelect[string]().
				Title("Audio encoding").
				Options(
					huh.NewOption("Raw PCM16 frames", "pcm16"),
					huh.NewOption("WAV chunks", "wav"),
				).
				Value(&a.Encoding),
		).Title("Speech"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Who decides what is feedback?").
				Options(
					huh.NewOption("This machine, using an LLM", "client"),
					huh.NewOption("The backend", "backend"),
				).
				Value(&a.FeedbackMode),
		).Title("Feedback"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("LLM provider").
				Options(providerOptions...).
				Value(&a.Provider),
			huh.NewInput().
				Title("Model").
				Placeholder(cfg.LLM.Model).
				Value(&a.Model).
				Validate(validateRequired),
			huh.NewInput().
				Title("API key").
				Description(keyDesc).
				EchoMode(huh.EchoModePassword).
				Value(&a.APIKey),
		).Title("LLM").WithHideFunc(func() bool {
			return a.FeedbackMode != "client"
		}),

		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Notifications").
				Options(
					huh.NewOption("Desktop notifications (notify-send)", "desktop"),
					huh.NewOption("Log to console only", "log"),
					huh.NewOption("None (silent)", "none"),
				).
				Value(&a.Notify),
		).Title("Notifications"),
	).WithTheme(getTheme())
}

func showSummary(a answers) (bool, error) {
	clearScreen()
	fmt.Println(StyleHeader.Render("Configuration Summary"))

	fmt.Printf("  Session:       %s\n", a.SessionID)
	fmt.Printf("  Backend:       %s\n", a.BackendURL)
	fmt.Printf("  Streaming:     %s (%s, %s)\n", a.TransportURL, language.Label(a.Language), a.Encoding)
	fmt.Printf("  Feedback:      %s\n", a.FeedbackMode)
	if a.FeedbackMode == "client" {
		key := "from environment"
		if a.APIKey != "" {
			key = maskAPIKey(a.APIKey)
		}
		fmt.Printf("  LLM:           %s / %s (key: %s)\n", providerDisplayNames[a.Provider], a.Model, key)
	}
	fmt.Printf("  Notifications: %s\n", a.Notify)
	fmt.Println()

	confirmed := true
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save this configuration?").
				Affirmative("Save").
				Negative("Discard").
				Value(&confirmed),
		),
	).WithTheme(getTheme()).Run()
	return confirmed, err
}

func validateRequired(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func validateURL(schemes ...string) func(string) error {
	return func(s string) error {
		u, err := url.Parse(strings.TrimSpace(s))
		if err != nil || u.Host == "" {
			return errors.New("not a valid URL")
		}
		for _, scheme := range schemes {
			if u.Scheme == scheme {
				return nil
			}
		}
		return fmt.Errorf("scheme must be %s", strings.Join(schemes, " or "))
	}
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// clearScreen clears the terminal screen
func clearScreen() {
	output := termenv.NewOutput(os.Stdout)
	output.ClearScreen()
}

func getTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Focused.Base = lipgloss.NewStyle().BorderForeground(ColorPrimary)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(ColorSecondary)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(ColorText)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(ColorMuted)
	t.Blurred.Description = lipgloss.NewStyle().Foreground(ColorSubtle)

	return t
}
