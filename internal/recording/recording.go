package recording

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type AudioFrame struct {
	Data      []byte
	Timestamp time.Time
}

type Config struct {
	SampleRate        int
	Channels          int
	Format            string // pw-record sample format: "f32le" or "s16le"
	FrameSamples      int    // samples per emitted frame
	Device            string
	ChannelBufferSize int
}

func DefaultConfig() Config {
	return Config{
		SampleRate:        16000,
		Channels:          1,
		Format:            "f32le",
		FrameSamples:      4096,
		Device:            "",
		ChannelBufferSize: 20,
	}
}

// FrameBytes is the size in bytes of one captured frame.
func (c Config) FrameBytes() int {
	return c.FrameSamples * c.Channels * BytesPerSample(c.Format)
}

// BytesPerSample returns the width of one sample for a pw-record format, or 0 if unknown.
func BytesPerSample(format string) int {
	switch format {
	case "f32le":
		return 4
	case "s16le":
		return 2
	default:
		return 0
	}
}

type commandFunc func(ctx context.Context, args ...string) *exec.Cmd

func pwRecordCommand(ctx context.Context, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "pw-record", args...)
}

type Recorder struct {
	config    Config
	recording atomic.Bool

	// swapped in tests
	command commandFunc
	probe   func(ctx context.Context) error

	mu     sync.Mutex // guards cmd and cancel
	cmd    *exec.Cmd
	cancel context.CancelFunc

	wg sync.WaitGroup
}

func NewRecorder(config Config) *Recorder {
	return &Recorder{
		config:  config,
		command: pwRecordCommand,
		probe:   CheckPipeWireAvailable,
	}
}

func NewDefaultRecorder() *Recorder { return NewRecorder(DefaultConfig()) }

func (r *Recorder) Config() Config {
	return r.config
}

func (r *Recorder) IsRecording() bool {
	return r.recording.Load()
}

func (r *Recorder) Start(ctx context.Context) (<-chan AudioFrame, <-chan error, error) {
	if r.recording.Load() {
		return nil, nil, fmt.Errorf("already recording")
	}

	if err := r.validateConfig(); err != nil {
		return nil, nil, err
	}

	if r.probe != nil {
		if err := r.probe(ctx); err != nil {
			return nil, nil, fmt.Errorf("PipeWire not available: %w", err)
		}
	}

	recordingCtx, cancel := context.WithCancel(ctx)

	frameCh := make(chan AudioFrame, r.config.ChannelBufferSize)
	errCh := make(chan error, 1)

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	r.recording.Store(true)
	r.wg.Add(1)
	go r.captureLoop(recordingCtx, frameCh, errCh)

	return frameCh, errCh, nil
}

// Stop cancels the capture process. Safe to call when not recording.
func (r *Recorder) Stop() error {
	if !r.recording.Load() {
		return nil
	}

	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	return nil
}

// Wait blocks until the capture loop has released the microphone.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) captureLoop(ctx context.Context, frameCh chan<- AudioFrame, errCh chan<- error) {
	defer func() {
		close(frameCh)
		close(errCh)
		r.recording.Store(false)

		r.mu.Lock()
		if r.cmd != nil {
			_ = r.cmd.Wait()
			r.cmd = nil
		}
		r.cancel = nil
		r.mu.Unlock()

		r.wg.Done()
	}()

	cmd := r.command(ctx, r.buildPwRecordArgs()...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.emitErr(errCh, fmt.Errorf("create stdout pipe: %w", err))
		r.requestCancel()
		return
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.emitErr(errCh, fmt.Errorf("create stderr pipe: %w", err))
		r.requestCancel()
		return
	}

	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()

	if err := cmd.Start(); err != nil {
		r.emitErr(errCh, fmt.Errorf("start capture: %w", err))
		r.requestCancel()
		return
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Printf("Recording stderr: %s", scanner.Text())
		}
	}()

	// one frame at a time; nothing is queued beyond the frame channel
	buffer := make([]byte, r.config.FrameBytes())
	var droppedCount int
	lastDropLog := time.Now()

	for {
		_, readErr := io.ReadFull(stdout, buffer)
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) || ctx.Err() != nil {
				return
			}
			r.emitErr(errCh, fmt.Errorf("read audio: %w", readErr))
			r.requestCancel()
			return
		}

		frameData := make([]byte, len(buffer))
		copy(frameData, buffer)
		frame := AudioFrame{Data: frameData, Timestamp: time.Now()}

		select {
		case frameCh <- frame:
		case <-ctx.Done():
			return
		default:
			droppedCount++
			if time.Since(lastDropLog) > time.Second {
				log.Printf("Recording: dropped %d frames due to backpressure", droppedCount)
				lastDropLog = time.Now()
				droppedCount = 0
			}
		}
	}
}

func (r *Recorder) requestCancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Recorder) emitErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
	}
	log.Printf("Recording error: %v", err)
}

func (r *Recorder) buildPwRecordArgs() []string {
	args := []string{
		"--format", r.pwFormat(),
		"--rate", strconv.Itoa(r.config.SampleRate),
		"--channels", strconv.Itoa(r.config.Channels),
	}
	if r.config.Device != "" {
		args = append(args, "--target", r.config.Device)
	}
	return append(args, "-") // stdout
}

// pw-record names formats without the endianness suffix
func (r *Recorder) pwFormat() string {
	switch r.config.Format {
	case "f32le":
		return "f32"
	case "s16le":
		return "s16"
	default:
		return r.config.Format
	}
}

func CheckPipeWireAvailable(ctx context.Context) error {
	if _, err := exec.LookPath("pw-record"); err != nil {
		return fmt.Errorf("pw-record not found: %w (install pipewire-tools)", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	cmd := exec.CommandContext(checkCtx, "pw-cli", "info")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("PipeWire not running or accessible: %w", err)
	}
	return nil
}

func (r *Recorder) validateConfig() error {
	if r.config.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: %d", r.config.SampleRate)
	}
	if r.config.Channels != 1 {
		return fmt.Errorf("invalid Channels: %d (capture is mono)", r.config.Channels)
	}
	if r.config.FrameSamples <= 0 {
		return fmt.Errorf("invalid FrameSamples: %d", r.config.FrameSamples)
	}
	if r.config.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid ChannelBufferSize: %d", r.config.ChannelBufferSize)
	}
	if BytesPerSample(r.config.Format) == 0 {
		return fmt.Errorf("invalid Format: %q (use f32le or s16le)", r.config.Format)
	}
	return nil
}
