package observer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/report"
)

type fakeDispatcher struct {
	mu       sync.Mutex
	received []report.Report
	ch       chan struct{}
}

func (d *fakeDispatcher) Dispatch(_ context.Context, r report.Report) {
	d.mu.Lock()
	d.received = append(d.received, r)
	ch := d.ch
	d.mu.Unlock()
	if ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (d *fakeDispatcher) reports() []report.Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]report.Report, len(d.received))
	copy(out, d.received)
	return out
}

func staticObserver(name string, reports []report.Report, err error) Observer {
	return ObserverFunc{
		ObserverName: name,
		Fn: func(context.Context) ([]report.Report, error) {
			return reports, err
		},
	}
}

func TestNewRunnerValidation(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	obs := staticObserver("DiskObserver", nil, nil)

	if _, err := NewRunner(nil, []Observer{obs}, time.Second); err == nil {
		t.Fatal("expected error when dispatcher is nil")
	}
	if _, err := NewRunner(dispatcher, nil, time.Second); err == nil {
		t.Fatal("expected error when no observers are configured")
	}
	if _, err := NewRunner(dispatcher, []Observer{obs}, 0); err == nil {
		t.Fatal("expected error for non-positive interval")
	}
	if _, err := NewRunner(dispatcher, []Observer{obs, staticObserver("DiskObserver", nil, nil)}, time.Second); err == nil {
		t.Fatal("expected error for duplicate observer names")
	}
}

func TestSweepDispatchesAllReports(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	disk := staticObserver("DiskObserver", []report.Report{
		{Kind: report.KindNode, NodeName: "node-0", State: report.StateWarning},
	}, nil)
	app := staticObserver("AppObserver", []report.Report{
		{Observer: report.ObserverApp, Kind: report.KindApplication, AppName: "fabric:/Shop", State: report.StateOk},
		{Observer: report.ObserverApp, Kind: report.KindApplication, AppName: "fabric:/Pay", State: report.StateOk},
	}, nil)

	runner, err := NewRunner(dispatcher, []Observer{disk, app}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error creating runner: %v", err)
	}

	results, err := runner.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected sweep error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected two results, got %d", len(results))
	}
	if results[0].Reports != 1 || results[1].Reports != 2 {
		t.Fatalf("unexpected report counts: %+v", results)
	}

	received := dispatcher.reports()
	if len(received) != 3 {
		t.Fatalf("expected three dispatched reports, got %d", len(received))
	}
	if received[0].Observer != "DiskObserver" {
		t.Fatalf("expected blank observer filled from observer name, got %q", received[0].Observer)
	}
}

func TestSweepAggregatesObserverFailures(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	broken := staticObserver("BrokenObserver", nil, errors.New("sampling failed"))
	healthy := staticObserver("NodeObserver", []report.Report{
		{Kind: report.KindNode, NodeName: "node-0", State: report.StateOk},
	}, nil)

	runner, err := NewRunner(dispatcher, []Observer{broken, healthy}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error creating runner: %v", err)
	}

	results, err := runner.Sweep(context.Background())
	if err == nil {
		t.Fatal("expected aggregated sweep error")
	}
	var sweepErr *SweepError
	if !errors.As(err, &sweepErr) {
		t.Fatalf("expected SweepError, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected both observers to run, got %d results", len(results))
	}
	if len(dispatcher.reports()) != 1 {
		t.Fatalf("expected healthy observer's report dispatched, got %d", len(dispatcher.reports()))
	}
}

func TestSweepStopsOnContextCancellation(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	cancelling := ObserverFunc{
		ObserverName: "SlowObserver",
		Fn: func(ctx context.Context) ([]report.Report, error) {
			return nil, context.Canceled
		},
	}
	never := staticObserver("NeverObserver", []report.Report{
		{Kind: report.KindNode, NodeName: "node-0", State: report.StateOk},
	}, nil)

	runner, err := NewRunner(dispatcher, []Observer{cancelling, never}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error creating runner: %v", err)
	}

	_, err = runner.Sweep(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation to propagate, got %v", err)
	}
	if len(dispatcher.reports()) != 0 {
		t.Fatal("expected sweep to stop before the next observer")
	}
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	dispatcher := &fakeDispatcher{ch: make(chan struct{}, 4)}
	obs := staticObserver("NodeObserver", []report.Report{
		{Kind: report.KindNode, NodeName: "node-0", State: report.StateOk},
	}, nil)

	runner, err := NewRunner(dispatcher, []Observer{obs}, 10*time.Millisecond,
		WithSleepFunc(func(time.Duration) { time.Sleep(time.Millisecond) }),
	)
	if err != nil {
		t.Fatalf("unexpected error creating runner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-dispatcher.ch:
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for sweep %d", i+1)
		}
	}
	cancel()

	select {
	case runErr := <-errCh:
		if !errors.Is(runErr, context.Canceled) {
			t.Fatalf("expected context cancellation, got %v", runErr)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for runner to exit")
	}
}

func TestRunInvokesErrorHandler(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	handlerCh := make(chan error, 1)
	obs := staticObserver("BrokenObserver", nil, errors.New("boom"))

	runner, err := NewRunner(dispatcher, []Observer{obs}, 10*time.Millisecond,
		WithSleepFunc(func(time.Duration) { time.Sleep(time.Millisecond) }),
		WithErrorHandler(func(err error) {
			select {
			case handlerCh <- err:
			default:
			}
		}),
	)
	if err != nil {
		t.Fatalf("unexpected error creating runner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	select {
	case handlerErr := <-handlerCh:
		var sweepErr *SweepError
		if !errors.As(handlerErr, &sweepErr) {
			t.Fatalf("expected aggregated sweep error, got %v", handlerErr)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for error handler invocation")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not exit after cancellation")
	}
}
