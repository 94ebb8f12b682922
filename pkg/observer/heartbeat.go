package observer

import (
	"context"
	"time"

	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/report"
)

const heartbeatObserverName = "HeartbeatObserver"

// HeartbeatProperty is the health-property bucket for node liveness records.
const HeartbeatProperty = "NodeStatus"

// HeartbeatObserver reports the local node as healthy on every pass.
// Because health records auto-expire, a node that stops sweeping vanishes
// from the cluster health view instead of lingering as stale Ok state.
type HeartbeatObserver struct {
	ttl time.Duration
}

// HeartbeatOption customises the heartbeat observer.
type HeartbeatOption func(*HeartbeatObserver)

// WithHeartbeatTTL bounds how long a heartbeat record outlives its sweep.
// Zero selects the dispatcher default.
func WithHeartbeatTTL(ttl time.Duration) HeartbeatOption {
	return func(o *HeartbeatObserver) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// NewHeartbeatObserver constructs a node liveness observer.
func NewHeartbeatObserver(opts ...HeartbeatOption) *HeartbeatObserver {
	observer := &HeartbeatObserver{}
	for _, opt := range opts {
		opt(observer)
	}
	return observer
}

// Name implements Observer.
func (o *HeartbeatObserver) Name() string { return heartbeatObserverName }

// Observe implements Observer.
func (o *HeartbeatObserver) Observe(ctx context.Context) ([]report.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []report.Report{{
		Observer: heartbeatObserverName,
		Kind:     report.KindNode,
		State:    report.StateOk,
		Property: HeartbeatProperty,
		Message:  "node heartbeat",
		TTL:      o.ttl,
	}}, nil
}

var _ Observer = (*HeartbeatObserver)(nil)
