package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/thinkaloud/thinkaloud/internal/bus"
	"github.com/thinkaloud/thinkaloud/internal/config"
	"github.com/thinkaloud/thinkaloud/internal/correction"
	"github.com/thinkaloud/thinkaloud/internal/daemon"
	"github.com/thinkaloud/thinkaloud/internal/diff"
	"github.com/thinkaloud/thinkaloud/internal/injection"
	"github.com/thinkaloud/thinkaloud/internal/pipeline"
	"github.com/thinkaloud/thinkaloud/internal/tui"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "thinkaloud",
	Short:         "Correct a product description by talking about it",
	SilenceUsage:  true,
}

func init() {
	rootCmd.AddCommand(
		serveCmd(),
		loadCmd(),
		correctCmd(),
		editCmd(),
		statusCmd(),
		historyCmd(),
		diffCmd(),
		watchCmd(),
		completeCmd(),
		sessionIDCmd(),
		versionCmd(),
		stopCmd(),
		configureCmd(),
		checkCmd(),
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := daemon.New(version)
			if err != nil {
				return fmt.Errorf("failed to create daemon: %w", err)
			}
			return d.Run()
		},
	}
}

// send runs one request against the daemon and turns ERR into an error.
func send(cmd, arg string) (bus.Response, error) {
	resp, err := bus.SendCommand(cmd, arg)
	if err != nil {
		return bus.Response{}, fmt.Errorf("daemon not reachable (is `thinkaloud serve` running?): %w", err)
	}
	if err := resp.Err(); err != nil {
		return resp, err
	}
	return resp, nil
}

func fetchStatus() (pipeline.Session, error) {
	resp, err := send(bus.CmdStatus, "")
	if err != nil {
		return pipeline.Session{}, err
	}
	var s pipeline.Session
	if err := json.Unmarshal([]byte(resp.Body), &s); err != nil {
		return pipeline.Session{}, fmt.Errorf("failed to decode status: %w", err)
	}
	return s, nil
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file|->",
		Short: "Load the text to correct (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			resp, err := send(bus.CmdLoad, text)
			if err != nil {
				return fmt.Errorf("failed to load text: %w", err)
			}
			fmt.Println(resp.Body)
			return nil
		},
	}
}

func readInput(arg string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if arg == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", arg, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func correctCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "correct",
		Short: "Start listening for spoken feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(bus.CmdCorrect, "")
			if err != nil {
				return fmt.Errorf("failed to start correction: %w", err)
			}
			fmt.Println(resp.Body)
			return nil
		},
	}
}

func editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Stop listening and return to manual editing",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(bus.CmdEdit, "")
			if err != nil {
				return fmt.Errorf("failed to stop correction: %w", err)
			}
			fmt.Println(resp.Body)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				resp, err := send(bus.CmdStatus, "")
				if err != nil {
					return fmt.Errorf("failed to get status: %w", err)
				}
				fmt.Println(resp.Body)
				return nil
			}
			s, err := fetchStatus()
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			fmt.Println(tui.RenderStatus(s))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw session JSON")
	return cmd
}

func historyCmd() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the corrections made in this session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := fetchStatus()
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			resp, err := send(bus.CmdHistory, "")
			if err != nil {
				return fmt.Errorf("failed to get history: %w", err)
			}
			var entries []correction.HistoryEntry
			if err := json.Unmarshal([]byte(resp.Body), &entries); err != nil {
				return fmt.Errorf("failed to decode history: %w", err)
			}
			fmt.Println(tui.RenderHistory(s.OriginalText, entries, !noColor))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Mark changes with {+ +} and [- -] instead of colors")
	return cmd
}

func diffCmd() *cobra.Command {
	var fromOriginal, noColor bool

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show what the last correction changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := fetchStatus()
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			before := s.PreviousText
			if fromOriginal {
				before = s.OriginalText
			}
			if before == "" {
				fmt.Println("No corrections yet.")
				return nil
			}
			segs := diff.Compute(before, s.CurrentText)
			fmt.Println(tui.RenderDiff(segs, !noColor))
			fmt.Println(tui.RenderDiffSummary(segs))
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromOriginal, "from-original", false, "Compare against the text as it was when correction began")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Mark changes with {+ +} and [- -] instead of colors")
	return cmd
}

func watchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the session live",
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Watch(fetchStatus, interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "Polling interval")
	return cmd
}

func completeCmd() *cobra.Command {
	var noInject bool

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Finish the task, print the final text and hand it to the desktop",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(bus.CmdComplete, "")
			if err != nil {
				return fmt.Errorf("failed to complete session: %w", err)
			}
			var s pipeline.Session
			if err := json.Unmarshal([]byte(resp.Body), &s); err != nil {
				return fmt.Errorf("failed to decode session: %w", err)
			}
			fmt.Println(s.CurrentText)
			fmt.Fprintf(os.Stderr, "completed in %s with %d corrections\n", s.Duration.Round(time.Second), s.HistoryLen)

			if noInject || s.CurrentText == "" {
				return nil
			}
			return deliver(cmd.Context(), s.CurrentText)
		},
	}

	cmd.Flags().BoolVar(&noInject, "no-inject", false, "Only print the text")
	return cmd
}

// deliver passes the final text to the configured injection backends.
// Failing to inject is reported but does not fail the command.
func deliver(ctx context.Context, text string) error {
	cfg, err := loadConfigOrDefault()
	if err != nil {
		return err
	}
	if len(cfg.Injection.Backends) == 0 {
		return nil
	}
	inj, err := injection.NewInjector(cfg.ToInjectionConfig())
	if err != nil {
		return err
	}
	used, err := inj.Inject(ctx, text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not deliver text: %v\n", err)
		return nil
	}
	fmt.Fprintf(os.Stderr, "delivered via %s\n", used)
	return nil
}

func sessionIDCmd() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "session-id [id]",
		Short: "Print a new session identifier, or set one on the daemon",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := uuid.NewString()
			if len(args) == 1 {
				id = args[0]
			}
			if !apply {
				fmt.Println(id)
				return nil
			}
			resp, err := send(bus.CmdSession, id)
			if err != nil {
				return fmt.Errorf("failed to set session: %w", err)
			}
			fmt.Println(resp.Body)
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Send the identifier to the running daemon")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print client and daemon versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("client version=%s\n", version)
			resp, err := send(bus.CmdVersion, "")
			if err != nil {
				return fmt.Errorf("failed to get version: %w", err)
			}
			fmt.Printf("daemon %s\n", resp.Body)
			return nil
		},
	}
}

func stopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(bus.CmdQuit, "")
			if err != nil {
				return fmt.Errorf("failed to stop daemon: %w", err)
			}
			fmt.Println(resp.Body)
			return nil
		},
	}
}

func configureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Interactive configuration setup",
		Long: `Interactive configuration wizard for thinkaloud.
This will guide you through setting up:
- Session ID and backend endpoints
- Spoken language and audio encoding
- Where feedback is classified, and the LLM used for it
- Notification preferences`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure()
		},
	}
}

func runConfigure() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	result, err := tui.Run(cfg)
	if err != nil {
		return fmt.Errorf("configuration wizard error: %w", err)
	}

	if result.Cancelled {
		fmt.Println("Configuration cancelled.")
		return nil
	}

	if err := result.Config.Validate(); err != nil {
		fmt.Printf("Configuration validation failed: %v\n", err)
		return err
	}

	if err := config.Save(result.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("Configuration saved successfully!")
	fmt.Println()

	showNextSteps()
	return nil
}

func showNextSteps() {
	serviceRunning := false
	if _, err := exec.Command("systemctl", "--user", "is-active", "--quiet", "thinkaloud.service").CombinedOutput(); err == nil {
		serviceRunning = true
	}

	fmt.Println("Next Steps:")
	if !serviceRunning {
		fmt.Println("1. Start the daemon: thinkaloud serve (or systemctl --user start thinkaloud.service)")
	} else {
		fmt.Println("1. The daemon picked up the new settings; restart it to change endpoints or the LLM")
	}
	fmt.Println("2. Load a description: thinkaloud load description.txt")
	fmt.Println("3. Start talking: thinkaloud correct")
	fmt.Println()

	configPath, _ := config.GetConfigPath()
	fmt.Printf("Config file location: %s\n", configPath)
}
