// Package correction runs the two-stage plan then apply cycle and keeps the
// append-only edit history.
package correction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/thinkaloud/thinkaloud/internal/observe"
)

var (
	ErrEmptyInput    = errors.New("feedback and current text must be non-empty")
	ErrEmptyRevision = errors.New("model returned an empty revision")
	ErrStale         = errors.New("result superseded by a mode change")
)

// Engine proposes and applies edits.
type Engine interface {
	Plan(ctx context.Context, text, feedback string) (string, error)
	Apply(ctx context.Context, text, plan, feedback string) (string, error)
}

// HistoryEntry records one completed correction.
type HistoryEntry struct {
	Utterance    string `json:"utterance"`
	EditPlan     string `json:"edit_plan"`
	ModifiedText string `json:"modified_text"`
}

// Guard reports a non-nil error when a cycle's result must be discarded.
type Guard func() error

type Orchestrator struct {
	engine  Engine
	metrics *observe.Metrics

	cycleMu sync.Mutex // one cycle in flight

	mu       sync.RWMutex
	text     string
	original string
	history  []HistoryEntry
	onPlan   func(utterance, plan string)
}

func New(engine Engine, metrics *observe.Metrics) *Orchestrator {
	return &Orchestrator{engine: engine, metrics: metrics}
}

// OnPlan registers the observer notified with each plan before Apply runs.
func (o *Orchestrator) OnPlan(handler func(utterance, plan string)) {
	o.mu.Lock()
	o.onPlan = handler
	o.mu.Unlock()
}

// Run executes one cycle for feedback against the current text. Cycles
// queue behind each other; a queued cycle sees the text produced by the one
// before it. On any error text and history are left untouched.
func (o *Orchestrator) Run(ctx context.Context, feedback string, guard Guard) (HistoryEntry, error) {
	feedback = strings.TrimSpace(feedback)

	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	text := o.Text()
	if feedback == "" || strings.TrimSpace(text) == "" {
		return HistoryEntry{}, ErrEmptyInput
	}
	if err := check(guard); err != nil {
		return HistoryEntry{}, err
	}

	start := time.Now()
	entry, err := o.cycle(ctx, text, feedback, guard)
	o.metrics.RecordCycle(ctx, cycleStatus(err), time.Since(start))
	if err != nil {
		log.Printf("Correction: cycle aborted after %v: %v", time.Since(start), err)
		return HistoryEntry{}, err
	}

	o.mu.Lock()
	o.history = append(o.history, entry)
	o.text = entry.ModifiedText
	n := len(o.history)
	o.mu.Unlock()

	log.Printf("Correction: cycle %d completed in %v", n, time.Since(start))
	return entry, nil
}

func (o *Orchestrator) cycle(ctx context.Context, text, feedback string, guard Guard) (HistoryEntry, error) {
	plan, err := o.engine.Plan(ctx, text, feedback)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("plan: %w", err)
	}
	if err := check(guard); err != nil {
		return HistoryEntry{}, err
	}

	o.mu.RLock()
	onPlan := o.onPlan
	o.mu.RUnlock()
	if onPlan != nil {
		onPlan(feedback, plan)
	}

	revised, err := o.engine.Apply(ctx, text, plan, feedback)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("apply: %w", err)
	}
	if strings.TrimSpace(revised) == "" {
		return HistoryEntry{}, fmt.Errorf("apply: %w", ErrEmptyRevision)
	}
	if err := check(guard); err != nil {
		return HistoryEntry{}, err
	}

	return HistoryEntry{Utterance: feedback, EditPlan: plan, ModifiedText: revised}, nil
}

func check(guard Guard) error {
	if guard == nil {
		return nil
	}
	if err := guard(); err != nil {
		return fmt.Errorf("%w: %v", ErrStale, err)
	}
	return nil
}

func cycleStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrStale):
		return "stale"
	default:
		return "error"
	}
}

// SetText replaces the current text. The first non-empty text becomes the
// original and never changes afterwards.
func (o *Orchestrator) SetText(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.text = text
	if o.original == "" && text != "" {
		o.original = text
	}
}

// Adopt takes the backend's authoritative text and history.
func (o *Orchestrator) Adopt(modifiedText string, history []HistoryEntry) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.text = modifiedText
	o.history = append([]HistoryEntry(nil), history...)
	if o.original == "" && modifiedText != "" {
		o.original = modifiedText
	}
}

// AnchorOriginal sets the original text if none is set yet.
func (o *Orchestrator) AnchorOriginal(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.original == "" && text != "" {
		o.original = text
	}
}

func (o *Orchestrator) Text() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.text
}

func (o *Orchestrator) Original() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.original
}

// History returns a copy of the history in completion order.
func (o *Orchestrator) History() []HistoryEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]HistoryEntry(nil), o.history...)
}

// PreviousText is the text just before the latest edit: the second to last
// entry's result, or the original with fewer than two entries.
func (o *Orchestrator) PreviousText() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if n := len(o.history); n >= 2 {
		return o.history[n-2].ModifiedText
	}
	return o.original
}
