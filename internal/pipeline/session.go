package pipeline

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/thinkaloud/thinkaloud/internal/correction"
	"github.com/thinkaloud/thinkaloud/internal/notify"
	"github.com/thinkaloud/thinkaloud/internal/transport"
)

// startWorkers launches the classify and cycle loops for one correction
// session. Segments are classified in arrival order and feedback units are
// corrected in the order they were accepted. Called with p.mu held.
func (p *pipeline) startWorkers(ctx context.Context) chan string {
	if p.config.FeedbackMode != FeedbackClient {
		return nil
	}

	segments := make(chan string, segmentQueueSize)
	units := make(chan string, segmentQueueSize)
	epoch := p.epoch

	p.workers.Add(2)
	go p.classifyLoop(ctx, segments, units)
	go p.cycleLoop(ctx, epoch, units)
	return segments
}

func (p *pipeline) classifyLoop(ctx context.Context, segments <-chan string, units chan<- string) {
	defer p.workers.Done()
	defer close(units)

	for seg := range segments {
		if ctx.Err() != nil {
			continue
		}
		if unit, ok := p.deps.Accumulator.Add(ctx, seg, p.deps.Orchestrator.Text()); ok {
			log.Printf("Pipeline: feedback accepted: %q", unit)
			units <- unit
		}
	}
}

func (p *pipeline) cycleLoop(ctx context.Context, epoch uint64, units <-chan string) {
	defer p.workers.Done()

	for unit := range units {
		if ctx.Err() != nil {
			continue
		}
		p.runCycle(ctx, epoch, unit)
	}
}

// drainWorkers stops accepting segments and waits for queued work. When ctx
// ends first, in-flight cycles are cancelled.
func (p *pipeline) drainWorkers(ctx context.Context) {
	p.mu.Lock()
	if p.segments != nil {
		close(p.segments)
		p.segments = nil
	}
	cancel := p.cycleCancel
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("Pipeline: abandoning queued feedback: %v", ctx.Err())
		if cancel != nil {
			cancel()
		}
		<-done
	}
}

func (p *pipeline) runCycle(ctx context.Context, epoch uint64, unit string) {
	entry, err := p.deps.Orchestrator.Run(ctx, unit, p.guard(epoch))

	p.mu.Lock()
	if p.epoch == epoch {
		p.pendingPlan = ""
	}
	onUpdate := p.onUpdate
	p.mu.Unlock()

	if err != nil {
		if errors.Is(err, correction.ErrStale) || ctx.Err() != nil {
			log.Printf("Pipeline: discarding result for %q: %v", unit, err)
			return
		}
		log.Printf("Pipeline: correction failed: %v", err)
		p.deps.Notifier.Send(notify.MsgCorrectionFailed, err.Error())
		return
	}

	p.deps.Notifier.Send(notify.MsgTextUpdated, "")
	if onUpdate != nil {
		onUpdate(entry)
	}
}

func (p *pipeline) handleMessage(msg transport.Message) {
	switch msg.Type {
	case transport.TypeTranscript:
		p.handleTranscript(msg)
	case transport.TypeEditPlan:
		p.handlePlan(msg.Utterance, msg.EditPlan)
	case transport.TypeNoEditNeeded:
		p.handleNoEdit(msg)
	case transport.TypeModificationComplete:
		p.handleModification(msg)
	default:
		log.Printf("Pipeline: ignoring message type %q", msg.Type)
	}
}

func (p *pipeline) handleTranscript(msg transport.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	p.mu.Lock()
	if p.mode != Correction {
		p.mu.Unlock()
		return
	}
	p.transcript = text
	onTranscript := p.onTranscript
	dropped := false
	if msg.Final() && p.segments != nil {
		select {
		case p.segments <- text:
		default:
			dropped = true
		}
	}
	p.mu.Unlock()

	if dropped {
		log.Printf("Pipeline: segment queue full, dropping %q", text)
	}
	if onTranscript != nil {
		onTranscript(text)
	}
}

// handlePlan surfaces a proposed edit before it is applied. Plans that
// arrive after correction ended are dropped.
func (p *pipeline) handlePlan(utterance, plan string) {
	p.mu.Lock()
	if p.mode != Correction {
		p.mu.Unlock()
		log.Printf("Pipeline: dropping late edit plan for %q", utterance)
		return
	}
	p.pendingPlan = plan
	onPlan := p.onPlan
	p.mu.Unlock()

	log.Printf("Pipeline: edit plan for %q: %s", utterance, plan)
	p.deps.Notifier.Send(notify.MsgPlanReady, plan)
	if onPlan != nil {
		onPlan(utterance, plan)
	}
}

func (p *pipeline) handleNoEdit(msg transport.Message) {
	p.mu.Lock()
	if p.mode != Correction {
		p.mu.Unlock()
		return
	}
	p.pendingPlan = ""
	p.mu.Unlock()

	log.Printf("Pipeline: no edit needed for %q", msg.Utterance)
	p.deps.Notifier.Send(notify.MsgNoEditNeeded, msg.Utterance)
}

// handleModification adopts the backend's text and history.
func (p *pipeline) handleModification(msg transport.Message) {
	p.mu.Lock()
	if p.mode != Correction {
		p.mu.Unlock()
		log.Printf("Pipeline: dropping late modification result")
		return
	}
	p.pendingPlan = ""
	onUpdate := p.onUpdate
	p.mu.Unlock()

	if msg.ModifiedText == "" {
		log.Printf("Pipeline: modification without text, ignoring")
		return
	}

	history := make([]correction.HistoryEntry, 0, len(msg.History))
	for _, h := range msg.History {
		history = append(history, correction.HistoryEntry{
			Utterance:    h.Utterance,
			EditPlan:     h.EditPlan,
			ModifiedText: h.ModifiedText,
		})
	}

	o := p.deps.Orchestrator
	o.AnchorOriginal(msg.OriginalText)
	o.Adopt(msg.ModifiedText, history)
	if len(msg.HistorySummary) > 0 {
		log.Printf("Pipeline: history summary: %s", msg.HistorySummary)
	}

	entry := correction.HistoryEntry{Utterance: msg.Utterance, EditPlan: msg.EditPlan, ModifiedText: msg.ModifiedText}
	if n := len(history); n > 0 {
		entry = history[n-1]
	}

	p.deps.Notifier.Send(notify.MsgTextUpdated, "")
	if onUpdate != nil {
		onUpdate(entry)
	}
}

func (p *pipeline) handleTransportError(err error) {
	log.Printf("Pipeline: transport error: %v", err)
	if errors.Is(err, transport.ErrReconnectExhausted) {
		p.deps.Notifier.Send(notify.MsgConnectionLost, "")
		return
	}
	p.deps.Notifier.Error(err.Error())
}
