package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/thinkaloud/thinkaloud/internal/config"
	"github.com/thinkaloud/thinkaloud/internal/deps"
	"github.com/thinkaloud/thinkaloud/internal/llm"
	"github.com/thinkaloud/thinkaloud/internal/recording"
	"github.com/thinkaloud/thinkaloud/internal/transport"
)

const (
	checkSampleRate   = 16000
	checkFrameSamples = 1600 // 100ms
	trailingSilence   = 2 * time.Second
)

// Sample utterances for the classifier check, in the default language.
var classifySamples = []struct {
	utterance string
	feedback  bool
}{
	{"もっとカジュアルな言い回しにしてほしい", true},
	{"サイズをLに直して", true},
	{"今日はいい天気ですね", false},
}

const (
	sampleText     = "美品のTシャツです。サイズはMです。"
	sampleFeedback = "サイズをLに直してほしい"
)

type checkOptions struct {
	audioPath string
	timeout   time.Duration
	realtime  bool
	session   string
	output    string
	skipLLM   bool
}

type checkResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
}

type checkReport struct {
	StartedAt  time.Time     `json:"started_at"`
	Results    []checkResult `json:"results"`
	PassCount  int           `json:"pass_count"`
	FailCount  int           `json:"fail_count"`
	SkipCount  int           `json:"skip_count"`
	TotalCount int           `json:"total_count"`
}

func checkCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the microphone, the streaming backend and the LLM end to end",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.audioPath, "audio", "", "WAV file to stream to the backend (streaming check is skipped without it)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 45*time.Second, "Per-check timeout")
	cmd.Flags().BoolVar(&opts.realtime, "realtime", true, "Pace streamed audio in real time")
	cmd.Flags().StringVar(&opts.session, "session", "", "Session ID for the streaming check (defaults to config)")
	cmd.Flags().StringVar(&opts.output, "output", "", "Write JSON report to file")
	cmd.Flags().BoolVar(&opts.skipLLM, "skip-llm", false, "Skip the LLM checks")

	return cmd
}

func runCheck(ctx context.Context, opts checkOptions) error {
	if opts.timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := time.Now().UTC()

	cfg, err := loadConfigOrDefault()
	if err != nil {
		return err
	}

	var results []checkResult
	results = append(results, checkTools()...)
	results = append(results, runTimed("pipewire", func() (string, error) {
		return "", recording.CheckPipeWireAvailable(ctx)
	}))

	if opts.audioPath == "" {
		results = append(results, checkResult{Name: "stream", Status: "skip", Output: "no --audio given"})
	} else {
		results = append(results, runTimed("stream", func() (string, error) {
			return checkStream(ctx, cfg, opts)
		}))
	}

	switch {
	case opts.skipLLM:
		results = append(results, checkResult{Name: "llm", Status: "skip", Output: "--skip-llm"})
	case !cfg.NeedsLLM():
		results = append(results, checkResult{Name: "llm", Status: "skip", Output: "feedback.mode = backend"})
	default:
		results = append(results, checkLLM(ctx, cfg, opts.timeout)...)
	}

	report := summarizeReport(startedAt, results)
	printReport(report)

	if opts.output != "" {
		if err := writeReport(opts.output, report); err != nil {
			return err
		}
	}

	if report.FailCount > 0 {
		return fmt.Errorf("%d of %d checks failed", report.FailCount, report.TotalCount)
	}
	return nil
}

func loadConfigOrDefault() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func runTimed(name string, fn func() (string, error)) checkResult {
	start := time.Now()
	out, err := fn()
	r := checkResult{Name: name, Status: "pass", DurationMS: time.Since(start).Milliseconds(), Output: out}
	if err != nil {
		r.Status = "fail"
		r.Error = err.Error()
	}
	return r
}

func checkTools() []checkResult {
	var results []checkResult
	for _, tool := range deps.Tools {
		status := deps.Check(tool)
		r := checkResult{Name: "tool " + tool.Name, Status: "pass", Output: status.Version}
		if !status.Installed {
			r.Status = "skip"
			r.Output = "not installed (" + tool.Purpose + ")"
			if tool.Required {
				r.Status = "fail"
				r.Output = ""
				r.Error = "not installed, needed for " + tool.Purpose
			}
		}
		results = append(results, r)
	}
	return results
}

// checkStream plays a WAV file through the transport and collects the
// transcripts the backend sends back.
func checkStream(ctx context.Context, cfg *config.Config, opts checkOptions) (string, error) {
	samples, err := readWAVFile(opts.audioPath)
	if err != nil {
		return "", err
	}

	session := opts.session
	if session == "" {
		session = cfg.Session.ID
	}
	if session == "" {
		return "", fmt.Errorf("no session id: set session.id or pass --session")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	capturer := newFileCapturer(samples, opts.realtime)
	tr := transport.New(cfg.ToTransportConfig(), capturer, nil)

	var mu sync.Mutex
	var segments []string
	tr.OnMessage(func(msg transport.Message) {
		if msg.Type == transport.TypeTranscript && msg.Final() && strings.TrimSpace(msg.Text) != "" {
			mu.Lock()
			segments = append(segments, strings.TrimSpace(msg.Text))
			mu.Unlock()
		}
	})
	errCh := make(chan error, 1)
	tr.OnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	if err := tr.Start(ctx, session); err != nil {
		return "", err
	}
	defer tr.Stop()

	select {
	case <-capturer.done:
		// let the backend finish the last segment
		select {
		case <-time.After(trailingSilence):
		case <-ctx.Done():
		}
	case err := <-errCh:
		return "", err
	case <-ctx.Done():
	}

	mu.Lock()
	defer mu.Unlock()
	if len(segments) == 0 {
		return "", fmt.Errorf("no transcript received")
	}
	return strings.Join(segments, " / "), nil
}

func checkLLM(ctx context.Context, cfg *config.Config, timeout time.Duration) []checkResult {
	llmCfg := cfg.ToLLMConfig()
	name := fmt.Sprintf("llm %s/%s", llmCfg.Provider, llmCfg.Model)

	oracle, err := llm.NewAdapter(llmCfg)
	if err != nil {
		return []checkResult{{Name: name, Status: "fail", Error: err.Error()}}
	}

	var results []checkResult
	for _, s := range classifySamples {
		results = append(results, runTimed(name+" classify", func() (string, error) {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			got, err := oracle.IsFeedback(callCtx, s.utterance, sampleText)
			if err != nil {
				return "", err
			}
			if got != s.feedback {
				return "", fmt.Errorf("%q classified as feedback=%v, want %v", s.utterance, got, s.feedback)
			}
			return fmt.Sprintf("%q feedback=%v", s.utterance, got), nil
		}))
	}

	results = append(results, runTimed(name+" correct", func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		plan, err := oracle.Plan(callCtx, sampleText, sampleFeedback)
		if err != nil {
			return "", fmt.Errorf("plan: %w", err)
		}
		revised, err := oracle.Apply(callCtx, sampleText, plan, sampleFeedback)
		if err != nil {
			return "", fmt.Errorf("apply: %w", err)
		}
		if revised == sampleText {
			return "", fmt.Errorf("text unchanged after plan %q", plan)
		}
		return revised, nil
	}))

	return results
}

// fileCapturer stands in for the microphone, replaying PCM16 mono samples.
type fileCapturer struct {
	samples  []int16
	realtime bool
	done     chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newFileCapturer(samples []int16, realtime bool) *fileCapturer {
	return &fileCapturer{samples: samples, realtime: realtime, done: make(chan struct{})}
}

func (c *fileCapturer) Config() recording.Config {
	return recording.Config{
		SampleRate:   checkSampleRate,
		Channels:     1,
		Format:       "s16le",
		FrameSamples: checkFrameSamples,
	}
}

func (c *fileCapturer) Start(ctx context.Context) (<-chan recording.AudioFrame, <-chan error, error) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	frames := make(chan recording.AudioFrame, 8)
	errs := make(chan error, 1)

	// pad with silence so the backend closes the final segment
	padded := append(append([]int16(nil), c.samples...), make([]int16, int(trailingSilence.Seconds()*checkSampleRate))...)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(frames)
		defer close(errs)
		defer close(c.done)

		frameDur := time.Duration(checkFrameSamples) * time.Second / checkSampleRate
		for off := 0; off < len(padded); off += checkFrameSamples {
			end := min(off+checkFrameSamples, len(padded))
			frame := recording.AudioFrame{Data: pcm16Bytes(padded[off:end]), Timestamp: time.Now()}

			select {
			case frames <- frame:
			case <-ctx.Done():
				return
			}
			if c.realtime {
				select {
				case <-time.After(frameDur):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return frames, errs, nil
}

func (c *fileCapturer) Stop() error {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (c *fileCapturer) Wait() {
	c.wg.Wait()
}

func pcm16Bytes(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// readWAVFile decodes a PCM WAV file into 16 kHz mono PCM16.
func readWAVFile(path string) ([]int16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid wav: missing format")
	}

	mono := downmixToMono(buf.Data, buf.Format.NumChannels, buf.SourceBitDepth)
	resampled := resamplePCM16(mono, buf.Format.SampleRate, checkSampleRate)
	if len(resampled) == 0 {
		return nil, fmt.Errorf("invalid wav: empty audio data")
	}
	return resampled, nil
}

func downmixToMono(data []int, channels, bitDepth int) []int16 {
	shift := 0
	if bitDepth > 16 {
		shift = bitDepth - 16
	}
	frames := len(data) / channels
	out := make([]int16, frames)
	for i := range frames {
		sum := 0
		for ch := range channels {
			sum += data[i*channels+ch] >> shift
		}
		out[i] = int16(sum / channels)
	}
	return out
}

func resamplePCM16(data []int16, inRate, outRate int) []int16 {
	if inRate == outRate || len(data) == 0 {
		return data
	}
	outLen := len(data) * outRate / inRate
	out := make([]int16, outLen)
	for i := range outLen {
		src := float64(i) * float64(inRate) / float64(outRate)
		idx := int(src)
		frac := src - float64(idx)
		a := data[min(idx, len(data)-1)]
		b := data[min(idx+1, len(data)-1)]
		out[i] = int16(float64(a) + (float64(b)-float64(a))*frac)
	}
	return out
}

func summarizeReport(startedAt time.Time, results []checkResult) checkReport {
	report := checkReport{StartedAt: startedAt, Results: results}
	for _, r := range results {
		report.TotalCount++
		switch r.Status {
		case "pass":
			report.PassCount++
		case "fail":
			report.FailCount++
		case "skip":
			report.SkipCount++
		}
	}
	return report
}

func printReport(report checkReport) {
	fmt.Printf("check: total=%d pass=%d fail=%d skip=%d\n", report.TotalCount, report.PassCount, report.FailCount, report.SkipCount)
	for _, r := range report.Results {
		line := fmt.Sprintf("%s %s", r.Status, r.Name)
		if r.DurationMS > 0 {
			line += fmt.Sprintf(" %dms", r.DurationMS)
		}
		if r.Error != "" {
			line += fmt.Sprintf(" error=%s", truncateString(r.Error, 160))
		}
		if r.Output != "" {
			line += fmt.Sprintf(" output=%q", truncateString(r.Output, 120))
		}
		fmt.Println(line)
	}
}

func writeReport(path string, report checkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func truncateString(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
