// Package observe holds the OpenTelemetry metric instruments for thinkaloud.
//
// Tests should build their own [Metrics] with [NewMetrics] and a private
// [metric.MeterProvider]; the daemon uses [DefaultMetrics], backed by the
// global provider installed by [InitProvider].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/thinkaloud/thinkaloud"

// Metrics holds every instrument the pipeline records to. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// CycleDuration tracks plan+apply latency. Attribute: status.
	CycleDuration metric.Float64Histogram

	// Cycles counts correction cycles. Attribute: status (ok, error, stale).
	Cycles metric.Int64Counter

	// Classifications counts classifier verdicts. Attribute: result
	// (feedback, ignored, error).
	Classifications metric.Int64Counter

	// Reconnects counts reconnect attempts. Attribute: result
	// (ok, failed, exhausted).
	Reconnects metric.Int64Counter

	// DroppedFrames counts audio frames captured while no connection was open.
	DroppedFrames metric.Int64Counter

	// Messages counts inbound backend messages. Attribute: type.
	Messages metric.Int64Counter

	// ActiveStreams is 1 while the transport holds an open session.
	ActiveStreams metric.Int64UpDownCounter

	// ModeTransitions counts state machine transitions. Attributes: from, to.
	ModeTransitions metric.Int64Counter
}

var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60,
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CycleDuration, err = m.Float64Histogram("thinkaloud.correction.duration",
		metric.WithDescription("Latency of one plan and apply correction cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Cycles, err = m.Int64Counter("thinkaloud.correction.cycles",
		metric.WithDescription("Correction cycles by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Classifications, err = m.Int64Counter("thinkaloud.feedback.classifications",
		metric.WithDescription("Feedback classifier verdicts."),
	); err != nil {
		return nil, err
	}
	if met.Reconnects, err = m.Int64Counter("thinkaloud.transport.reconnects",
		metric.WithDescription("Transport reconnect attempts by result."),
	); err != nil {
		return nil, err
	}
	if met.DroppedFrames, err = m.Int64Counter("thinkaloud.transport.dropped_frames",
		metric.WithDescription("Audio frames dropped while disconnected."),
	); err != nil {
		return nil, err
	}
	if met.Messages, err = m.Int64Counter("thinkaloud.transport.messages",
		metric.WithDescription("Inbound backend messages by type."),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("thinkaloud.transport.active_streams",
		metric.WithDescription("Open streaming sessions."),
	); err != nil {
		return nil, err
	}
	if met.ModeTransitions, err = m.Int64Counter("thinkaloud.pipeline.transitions",
		metric.WithDescription("Mode transitions by source and target mode."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance created on first use
// from [otel.GetMeterProvider].
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

func (m *Metrics) RecordCycle(ctx context.Context, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.Cycles.Add(ctx, 1, attrs)
	m.CycleDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) RecordClassification(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.Classifications.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) RecordReconnect(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.Reconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) RecordDroppedFrame(ctx context.Context) {
	if m == nil {
		return
	}
	m.DroppedFrames.Add(ctx, 1)
}

func (m *Metrics) RecordMessage(ctx context.Context, msgType string) {
	if m == nil {
		return
	}
	m.Messages.Add(ctx, 1, metric.WithAttributes(attribute.String("type", msgType)))
}

// StreamStarted and StreamStopped must be paired.
func (m *Metrics) StreamStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveStreams.Add(ctx, 1)
}

func (m *Metrics) StreamStopped(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveStreams.Add(ctx, -1)
}

func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.ModeTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}
