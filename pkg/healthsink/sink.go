// Package healthsink defines the boundary to the external cluster health
// store and ships an etcd-backed implementation.
package healthsink

import (
	"context"
	"time"

	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/report"
)

// Entry is the payload recorded against a target entity.
type Entry struct {
	// SourceID identifies the reporting source.
	SourceID string
	// Property is the health-property bucket within the source.
	Property string
	// State is the asserted severity.
	State report.State
	// Description is the rendered report body.
	Description string
	// TTL bounds how long the record stays fresh.
	TTL time.Duration
	// RemoveWhenExpired removes the record from the health view once the
	// TTL elapses instead of flagging it as stale.
	RemoveWhenExpired bool
	// SendImmediately bypasses the sink's batching cadence.
	SendImmediately bool
}

// Sink records health entries against cluster entities. Implementations
// must accept every target shape and apply last-write-wins semantics per
// (target, SourceID, Property) key.
type Sink interface {
	ReportHealth(ctx context.Context, target report.Target, entry Entry) error
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(ctx context.Context, target report.Target, entry Entry) error

// ReportHealth implements Sink.
func (f SinkFunc) ReportHealth(ctx context.Context, target report.Target, entry Entry) error {
	return f(ctx, target, entry)
}
