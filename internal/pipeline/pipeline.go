// Package pipeline is the session state machine: upload, edit and
// correction. It wires the transport, the feedback accumulator and the
// correction orchestrator in and out of the live session.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/thinkaloud/thinkaloud/internal/correction"
	"github.com/thinkaloud/thinkaloud/internal/display"
	"github.com/thinkaloud/thinkaloud/internal/feedback"
	"github.com/thinkaloud/thinkaloud/internal/notify"
	"github.com/thinkaloud/thinkaloud/internal/observe"
	"github.com/thinkaloud/thinkaloud/internal/transport"
)

type Mode string

const (
	Upload     Mode = "upload"
	Edit       Mode = "edit"
	Correction Mode = "correction"
)

// Where feedback is classified.
const (
	FeedbackClient  = "client"
	FeedbackBackend = "backend"
)

var (
	ErrEmptyText         = errors.New("text is empty")
	ErrMissingSessionID  = errors.New("session identifier is required")
	ErrInvalidTransition = errors.New("invalid mode transition")
)

const segmentQueueSize = 64

type Pipeline interface {
	Load(text string) error
	EnterCorrection(ctx context.Context) error
	ExitCorrection(ctx context.Context) error
	Complete(ctx context.Context) (Session, error)
	SetSessionID(id string) error
	Snapshot() Session
	History() []correction.HistoryEntry
	OnTranscript(func(text string))
	OnPlan(func(utterance, plan string))
	OnUpdate(func(entry correction.HistoryEntry))
	Close() error
}

// Session is a read-only snapshot of the pipeline state.
type Session struct {
	SessionID    string        `json:"session_id"`
	Mode         Mode          `json:"mode"`
	CurrentText  string        `json:"current_text"`
	OriginalText string        `json:"original_text"`
	PreviousText string        `json:"previous_text"`
	Transcript   string        `json:"transcript"`
	Buffer       string        `json:"buffer"`
	IsStreaming  bool          `json:"is_streaming"`
	PendingPlan  string        `json:"pending_plan,omitempty"`
	HistoryLen   int           `json:"history_len"`
	StartedAt    time.Time     `json:"started_at,omitempty"`
	CompletedAt  time.Time     `json:"completed_at,omitempty"`
	Duration     time.Duration `json:"duration"`
}

type Config struct {
	SessionID    string
	FeedbackMode string // FeedbackClient or FeedbackBackend
}

type Deps struct {
	Transport    transport.Transport
	Accumulator  *feedback.Accumulator // unused in backend mode
	Orchestrator *correction.Orchestrator
	Display      display.Pusher
	Notifier     notify.Notifier
	Metrics      *observe.Metrics
}

type pipeline struct {
	config Config
	deps   Deps

	transMu sync.Mutex // one transition at a time

	mu          sync.Mutex
	mode        Mode
	epoch       uint64
	sessionID   string
	transcript  string
	pendingPlan string
	startedAt   time.Time
	completedAt time.Time
	segments    chan string // nil outside correction
	cycleCtx    context.Context
	cycleCancel context.CancelFunc

	onTranscript func(string)
	onPlan       func(string, string)
	onUpdate     func(correction.HistoryEntry)

	workers sync.WaitGroup
}

func New(config Config, deps Deps) Pipeline {
	if config.FeedbackMode == "" {
		config.FeedbackMode = FeedbackClient
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}

	p := &pipeline{
		config:    config,
		deps:      deps,
		mode:      Upload,
		sessionID: config.SessionID,
	}

	deps.Transport.OnMessage(p.handleMessage)
	deps.Transport.OnError(p.handleTransportError)
	deps.Orchestrator.OnPlan(p.handlePlan)
	return p
}

func (p *pipeline) OnTranscript(fn func(string)) {
	p.mu.Lock()
	p.onTranscript = fn
	p.mu.Unlock()
}

func (p *pipeline) OnPlan(fn func(utterance, plan string)) {
	p.mu.Lock()
	p.onPlan = fn
	p.mu.Unlock()
}

func (p *pipeline) OnUpdate(fn func(correction.HistoryEntry)) {
	p.mu.Lock()
	p.onUpdate = fn
	p.mu.Unlock()
}

func (p *pipeline) SetSessionID(id string) error {
	p.transMu.Lock()
	defer p.transMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode == Correction {
		return fmt.Errorf("%w: cannot change session while in correction", ErrInvalidTransition)
	}
	p.sessionID = id
	return nil
}

// Load accepts the description to edit: upload -> edit, or a replacement
// while in edit.
func (p *pipeline) Load(text string) error {
	p.transMu.Lock()
	defer p.transMu.Unlock()

	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	p.mu.Lock()
	from := p.mode
	if from == Correction {
		p.mu.Unlock()
		return fmt.Errorf("%w: cannot load text in %s mode", ErrInvalidTransition, from)
	}
	p.mode = Edit
	p.epoch++
	p.mu.Unlock()

	p.deps.Orchestrator.SetText(text)
	if from != Edit {
		p.transition(from, Edit)
	}
	log.Printf("Pipeline: loaded text (%d chars)", len([]rune(text)))
	return nil
}

// EnterCorrection registers the text with the backend, switches to
// correction and starts streaming. On any failure the mode stays edit.
func (p *pipeline) EnterCorrection(ctx context.Context) error {
	p.transMu.Lock()
	defer p.transMu.Unlock()

	p.mu.Lock()
	mode := p.mode
	sessionID := p.sessionID
	p.mu.Unlock()

	if mode != Edit {
		return fmt.Errorf("%w: cannot enter correction from %s", ErrInvalidTransition, mode)
	}
	text := p.deps.Orchestrator.Text()
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if sessionID == "" {
		return ErrMissingSessionID
	}

	accepted, err := p.deps.Display.Push(ctx, text, sessionID)
	if err != nil {
		return fmt.Errorf("register display text: %w", err)
	}
	if accepted != text {
		p.deps.Orchestrator.SetText(accepted)
	}
	p.deps.Orchestrator.AnchorOriginal(accepted)

	if p.config.FeedbackMode == FeedbackClient {
		p.deps.Accumulator.Reset()
	}

	p.mu.Lock()
	p.mode = Correction
	p.epoch++
	p.transcript = ""
	p.pendingPlan = ""
	if p.startedAt.IsZero() {
		p.startedAt = time.Now()
	}
	p.cycleCtx, p.cycleCancel = context.WithCancel(context.Background())
	p.segments = p.startWorkers(p.cycleCtx)
	p.mu.Unlock()

	if err := p.deps.Transport.Start(ctx, sessionID); err != nil {
		_ = p.deps.Transport.Stop()
		p.leaveCorrection()
		return fmt.Errorf("start streaming: %w", err)
	}

	p.transition(Edit, Correction)
	p.deps.Notifier.Send(notify.MsgCorrectionStarted, "")
	log.Printf("Pipeline: correction started for session %s", sessionID)
	return nil
}

// ExitCorrection stops streaming and waits for queued feedback. A leftover
// buffer that classifies as feedback gets one last cycle. Text and history
// are kept. Outside correction it is a no-op.
func (p *pipeline) ExitCorrection(ctx context.Context) error {
	p.transMu.Lock()
	defer p.transMu.Unlock()
	return p.exitLocked(ctx)
}

func (p *pipeline) exitLocked(ctx context.Context) error {
	p.mu.Lock()
	if p.mode != Correction {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.deps.Transport.Stop(); err != nil {
		log.Printf("Pipeline: stop transport: %v", err)
	}

	p.drainWorkers(ctx)

	if p.config.FeedbackMode == FeedbackClient && ctx.Err() == nil {
		if unit, ok := p.deps.Accumulator.Flush(ctx, p.deps.Orchestrator.Text()); ok {
			p.mu.Lock()
			epoch := p.epoch
			p.mu.Unlock()
			p.runCycle(ctx, epoch, unit)
		}
	}

	p.leaveCorrection()
	p.transition(Correction, Edit)
	p.deps.Notifier.Send(notify.MsgCorrectionStopped, "")
	log.Printf("Pipeline: correction stopped")
	return nil
}

// leaveCorrection drops back to edit and invalidates in-flight results.
func (p *pipeline) leaveCorrection() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.mode = Edit
	p.epoch++
	p.transcript = ""
	p.pendingPlan = ""
	if p.segments != nil {
		close(p.segments)
		p.segments = nil
	}
	if p.cycleCancel != nil {
		p.cycleCancel()
		p.cycleCancel = nil
	}
	if p.config.FeedbackMode == FeedbackClient {
		p.deps.Accumulator.Reset()
	}
}

// Complete ends the study task and records its duration.
func (p *pipeline) Complete(ctx context.Context) (Session, error) {
	p.transMu.Lock()
	if err := p.exitLocked(ctx); err != nil {
		p.transMu.Unlock()
		return Session{}, err
	}
	p.mu.Lock()
	if p.completedAt.IsZero() {
		p.completedAt = time.Now()
	}
	p.mu.Unlock()
	p.transMu.Unlock()

	s := p.Snapshot()
	p.deps.Notifier.Send(notify.MsgSessionComplete, s.Duration.Round(time.Second).String())
	log.Printf("Pipeline: session complete after %v with %d edits", s.Duration.Round(time.Second), s.HistoryLen)
	return s, nil
}

// Close tears the session down on every exit path.
func (p *pipeline) Close() error {
	p.transMu.Lock()
	defer p.transMu.Unlock()

	err := p.deps.Transport.Stop()

	p.mu.Lock()
	inCorrection := p.mode == Correction
	p.mu.Unlock()
	if inCorrection {
		p.leaveCorrection()
		p.workers.Wait()
	}
	return err
}

func (p *pipeline) Snapshot() Session {
	p.mu.Lock()
	s := Session{
		SessionID:   p.sessionID,
		Mode:        p.mode,
		Transcript:  p.transcript,
		PendingPlan: p.pendingPlan,
		StartedAt:   p.startedAt,
		CompletedAt: p.completedAt,
	}
	p.mu.Unlock()

	o := p.deps.Orchestrator
	s.CurrentText = o.Text()
	s.OriginalText = o.Original()
	s.PreviousText = o.PreviousText()
	s.HistoryLen = len(o.History())
	s.IsStreaming = p.deps.Transport.IsActive()
	if p.config.FeedbackMode == FeedbackClient {
		s.Buffer = p.deps.Accumulator.Buffer()
	}

	switch {
	case s.StartedAt.IsZero():
	case !s.CompletedAt.IsZero():
		s.Duration = s.CompletedAt.Sub(s.StartedAt)
	default:
		s.Duration = time.Since(s.StartedAt)
	}
	return s
}

func (p *pipeline) History() []correction.HistoryEntry {
	return p.deps.Orchestrator.History()
}

func (p *pipeline) transition(from, to Mode) {
	p.deps.Metrics.RecordTransition(context.Background(), string(from), string(to))
}

// guard fails once the mode has changed since epoch was taken.
func (p *pipeline) guard(epoch uint64) correction.Guard {
	return func() error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.epoch != epoch || p.mode != Correction {
			return fmt.Errorf("epoch %d superseded by %d", epoch, p.epoch)
		}
		return nil
	}
}
