//go:build integration

package main

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/thinkaloud/thinkaloud/internal/config"
	"github.com/thinkaloud/thinkaloud/internal/correction"
	"github.com/thinkaloud/thinkaloud/internal/feedback"
	"github.com/thinkaloud/thinkaloud/internal/llm"
)

const testTimeout = 45 * time.Second

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := loadConfigOrDefault()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Feedback.Mode == "backend" {
		cfg.Feedback.Mode = "client"
	}
	return cfg
}

func newTestOracle(t *testing.T) *llm.ChatAdapter {
	t.Helper()
	cfg := loadTestConfig(t)
	oracle, err := llm.NewAdapter(cfg.ToLLMConfig())
	if err != nil {
		t.Skipf("no LLM configured: %v", err)
	}
	return oracle
}

func TestLLMClassify(t *testing.T) {
	oracle := newTestOracle(t)

	for _, s := range classifySamples {
		t.Run(s.utterance, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
			defer cancel()

			got, err := oracle.IsFeedback(ctx, s.utterance, sampleText)
			if err != nil {
				t.Fatalf("IsFeedback() error = %v", err)
			}
			if got != s.feedback {
				t.Errorf("IsFeedback(%q) = %v, want %v", s.utterance, got, s.feedback)
			}
		})
	}
}

func TestLLMCorrectionCycle(t *testing.T) {
	oracle := newTestOracle(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*testTimeout)
	defer cancel()

	orch := correction.New(oracle, nil)
	orch.SetText(sampleText)
	orch.AnchorOriginal(sampleText)

	acc := feedback.NewAccumulator(oracle, nil)
	unit, ok := acc.Add(ctx, sampleFeedback, orch.Text())
	if !ok {
		t.Fatalf("%q was not accepted as feedback", sampleFeedback)
	}

	entry, err := orch.Run(ctx, unit, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if entry.EditPlan == "" {
		t.Error("empty edit plan")
	}
	if !strings.Contains(entry.ModifiedText, "L") {
		t.Errorf("ModifiedText = %q, want the size changed to L", entry.ModifiedText)
	}
	if orch.Original() != sampleText {
		t.Errorf("Original() = %q", orch.Original())
	}
}

func TestStreamSample(t *testing.T) {
	path := os.Getenv("THINKALOUD_TEST_AUDIO")
	if path == "" {
		t.Skip("set THINKALOUD_TEST_AUDIO to a WAV file to test streaming")
	}
	cfg := loadTestConfig(t)

	out, err := checkStream(context.Background(), cfg, checkOptions{
		audioPath: path,
		timeout:   testTimeout,
		realtime:  true,
		session:   "integration-test",
	})
	if err != nil {
		t.Fatalf("checkStream() error = %v", err)
	}
	t.Logf("transcript: %s", out)
}
