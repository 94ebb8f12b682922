// Package observer runs health observers on a fixed cadence and hands their
// judgments to the dispatcher.
package observer

import (
	"context"

	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/report"
)

// Observer produces health judgments about one aspect of the local node or
// its hosted entities. Implementations sample whatever they monitor and
// return zero or more reports per pass; they never talk to the health sink
// directly.
type Observer interface {
	// Name identifies the observer; it must be unique within a runner.
	Name() string
	// Observe performs one observation pass.
	Observe(ctx context.Context) ([]report.Report, error)
}

// ObserverFunc adapts a named function into an Observer.
type ObserverFunc struct {
	ObserverName string
	Fn           func(ctx context.Context) ([]report.Report, error)
}

// Name implements Observer.
func (o ObserverFunc) Name() string { return o.ObserverName }

// Observe implements Observer.
func (o ObserverFunc) Observe(ctx context.Context) ([]report.Report, error) {
	if o.Fn == nil {
		return nil, nil
	}
	return o.Fn(ctx)
}

var _ Observer = ObserverFunc{}
