// Package dispatch turns locally produced health judgments into durable,
// correctly targeted cluster health records.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/healthsink"
	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/observability"
	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/report"
)

// Metric names emitted by the dispatcher.
const (
	metricReportsDispatched = "health_reports_dispatched_total"
	metricReportsDropped    = "health_reports_dropped_total"
	metricSinkFailures      = "health_sink_failures_total"
	metricDispatchSeconds   = "health_dispatch_seconds"
)

// Dispatcher orchestrates normalization, target resolution and send-policy
// computation for health reports, and issues exactly one sink call per
// dispatch-eligible report.
//
// A Dispatcher holds no shared mutable state: concurrent Dispatch calls
// need no coordination, since the sink serializes entries per (source,
// property) key on its own side. Dispatch never propagates a failure to
// its caller; losing one health record is strictly less severe than
// crashing the monitoring loop that produced it.
type Dispatcher struct {
	sink       healthsink.Sink
	logger     observability.Logger
	metrics    observability.MetricsCollector
	node       string
	defaultTTL time.Duration
	now        func() time.Time
}

// Option customises dispatcher behaviour.
type Option func(*Dispatcher)

// WithLogger wires the local event log used for EmitLogEvent reports and
// for recording sink failures.
func WithLogger(logger observability.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMetrics wires a collector for dispatch, drop and failure counters.
func WithMetrics(metrics observability.MetricsCollector) Option {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// WithNodeName sets the local node, filled into reports whose kind implies
// the reporting node but whose NodeName was left empty.
func WithNodeName(node string) Option {
	return func(d *Dispatcher) {
		d.node = node
	}
}

// WithDefaultTTL overrides the fallback time-to-live for reports that do
// not set their own.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(d *Dispatcher) {
		if ttl > 0 {
			d.defaultTTL = ttl
		}
	}
}

// New constructs a Dispatcher sending reports to the provided sink.
func New(sink healthsink.Sink, opts ...Option) (*Dispatcher, error) {
	if sink == nil {
		return nil, errors.New("dispatcher requires a health sink")
	}

	dispatcher := &Dispatcher{
		sink:       sink,
		metrics:    observability.NoopCollector{},
		defaultTTL: report.DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	if dispatcher.metrics == nil {
		dispatcher.metrics = observability.NoopCollector{}
	}
	return dispatcher, nil
}

// Dispatch normalizes, resolves and sends one health report. Reports whose
// kind-required identity fields are missing are counted and silently
// dropped; sink failures are logged and swallowed.
func (d *Dispatcher) Dispatch(ctx context.Context, r report.Report) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := d.now()

	r = report.Normalize(r)
	if r.NodeName == "" {
		r.NodeName = d.node
	}

	target, ok := report.Resolve(r)
	if !ok {
		d.count(metricReportsDropped, "Number of health reports dropped for missing identity fields", r.Observer)
		return
	}

	policy := report.PolicyFor(r, d.defaultTTL)
	description := report.Description(r)

	if r.EmitLogEvent {
		d.emitLog(ctx, r, description)
	}

	entry := healthsink.Entry{
		SourceID:          r.SourceID,
		Property:          r.Property,
		State:             r.State,
		Description:       description,
		TTL:               policy.TTL,
		RemoveWhenExpired: true,
		SendImmediately:   policy.Immediate,
	}
	if err := d.sink.ReportHealth(ctx, target, entry); err != nil {
		d.count(metricSinkFailures, "Number of failed health sink calls", r.Observer)
		d.logSinkFailure(ctx, r, err)
		return
	}

	d.count(metricReportsDispatched, "Number of health reports dispatched", r.Observer)
	d.metrics.Collect(observability.Metric{
		Name:        metricDispatchSeconds,
		Type:        observability.MetricHistogram,
		Value:       d.now().Sub(start).Seconds(),
		Unit:        "seconds",
		Description: "Health report dispatch duration",
		Labels:      map[string]string{"observer": r.Observer},
	})
}

func (d *Dispatcher) emitLog(ctx context.Context, r report.Report, description string) {
	if d.logger == nil {
		return
	}
	event := observability.Event{
		Level:    levelFor(r.State),
		Node:     r.NodeName,
		Observer: r.Observer,
		Event:    "health_report",
		Message:  description,
		Fields: map[string]interface{}{
			"source":   r.SourceID,
			"property": r.Property,
			"state":    string(r.State),
		},
	}
	_ = d.logger.Log(ctx, event)
}

func (d *Dispatcher) logSinkFailure(ctx context.Context, r report.Report, err error) {
	if d.logger == nil {
		return
	}
	event := observability.Event{
		Level:    observability.LevelError,
		Node:     r.NodeName,
		Observer: r.Observer,
		Event:    "health_sink_failure",
		Message:  err.Error(),
		Fields: map[string]interface{}{
			"source":   r.SourceID,
			"property": r.Property,
		},
	}
	_ = d.logger.Log(ctx, event)
}

func (d *Dispatcher) count(name, help, observer string) {
	d.metrics.Collect(observability.Metric{
		Name:        name,
		Type:        observability.MetricCounter,
		Value:       1,
		Description: help,
		Labels:      map[string]string{"observer": observer},
	})
}

func levelFor(state report.State) observability.Level {
	switch state {
	case report.StateError:
		return observability.LevelError
	case report.StateWarning:
		return observability.LevelWarn
	default:
		return observability.LevelInfo
	}
}
