// Package feedback buffers transcript segments until the classifier decides
// the buffered speech is actionable feedback.
package feedback

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/thinkaloud/thinkaloud/internal/observe"
)

// Classifier judges whether an utterance is feedback on currentText.
type Classifier interface {
	IsFeedback(ctx context.Context, utterance, currentText string) (bool, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, utterance, currentText string) (bool, error)

func (f ClassifierFunc) IsFeedback(ctx context.Context, utterance, currentText string) (bool, error) {
	return f(ctx, utterance, currentText)
}

// Accumulator owns the transcript buffer. Add and Flush are serialized, so a
// buffer is forwarded at most once.
type Accumulator struct {
	classifier Classifier
	metrics    *observe.Metrics

	mu     sync.Mutex
	buffer string
}

func NewAccumulator(classifier Classifier, metrics *observe.Metrics) *Accumulator {
	return &Accumulator{classifier: classifier, metrics: metrics}
}

// Add appends segment and classifies the whole buffer. When it is feedback,
// the buffer is returned and cleared.
func (a *Accumulator) Add(ctx context.Context, segment, currentText string) (string, bool) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "", false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.buffer == "" {
		a.buffer = segment
	} else {
		a.buffer += " " + segment
	}
	return a.classifyLocked(ctx, currentText)
}

// Flush runs a non-empty leftover buffer through the classifier. The buffer
// is empty afterwards either way.
func (a *Accumulator) Flush(ctx context.Context, currentText string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.buffer == "" {
		return "", false
	}
	utterance, ok := a.classifyLocked(ctx, currentText)
	a.buffer = ""
	return utterance, ok
}

func (a *Accumulator) classifyLocked(ctx context.Context, currentText string) (string, bool) {
	isFeedback, err := a.classifier.IsFeedback(ctx, a.buffer, currentText)
	if err != nil {
		log.Printf("Feedback: classification failed, keeping buffer: %v", err)
		a.metrics.RecordClassification(ctx, "error")
		return "", false
	}
	if !isFeedback {
		a.metrics.RecordClassification(ctx, "ignored")
		return "", false
	}

	a.metrics.RecordClassification(ctx, "feedback")
	utterance := a.buffer
	a.buffer = ""
	return utterance, true
}

func (a *Accumulator) Buffer() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffer
}

func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.buffer = ""
	a.mu.Unlock()
}
