package injection

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

type wtypeBackend struct {
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewWtypeBackend() Backend {
	return &wtypeBackend{command: exec.CommandContext}
}

func (w *wtypeBackend) Name() string {
	return "wtype"
}

func (w *wtypeBackend) Available() error {
	if _, err := exec.LookPath("wtype"); err != nil {
		return fmt.Errorf("wtype not found: %w (install wtype package)", err)
	}
	return nil
}

func (w *wtypeBackend) Inject(ctx context.Context, text string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// "--" keeps a description starting with "-" from being read as a flag
	cmd := w.command(ctx, "wtype", "--", text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("wtype failed: %w", err)
	}
	return nil
}
