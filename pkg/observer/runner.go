package observer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NCarlsonMSFT/service-fabric-observer/pkg/report"
)

type reportDispatcher interface {
	Dispatch(ctx context.Context, r report.Report)
}

// Result captures the outcome of one observer's observation pass.
type Result struct {
	Name     string
	Reports  int
	Err      error
	Duration time.Duration
}

// SweepError aggregates per-observer failures from a single pass.
type SweepError struct {
	Problems []string
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("observer sweep failed: %s", strings.Join(e.Problems, "; "))
}

func (e *SweepError) Is(target error) bool {
	var other *SweepError
	return errors.As(target, &other)
}

// Runner drives a collection of observers on a fixed interval and feeds
// every produced report to the dispatcher. One misbehaving observer does
// not stop the others: its error is aggregated and the sweep continues.
type Runner struct {
	observers    []Observer
	dispatcher   reportDispatcher
	interval     time.Duration
	sleep        func(time.Duration)
	errorHandler func(error)
}

// RunnerOption customises the observation loop.
type RunnerOption func(*Runner)

// WithSleepFunc overrides the sleep implementation between sweeps.
func WithSleepFunc(fn func(time.Duration)) RunnerOption {
	return func(r *Runner) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// WithErrorHandler registers a callback for sweep errors.
func WithErrorHandler(fn func(error)) RunnerOption {
	return func(r *Runner) {
		r.errorHandler = fn
	}
}

// NewRunner constructs an observation loop over the provided observers.
func NewRunner(dispatcher reportDispatcher, observers []Observer, interval time.Duration, opts ...RunnerOption) (*Runner, error) {
	if dispatcher == nil {
		return nil, errors.New("runner requires a dispatcher")
	}
	if len(observers) == 0 {
		return nil, errors.New("at least one observer must be configured")
	}
	if interval <= 0 {
		return nil, errors.New("observation interval must be greater than zero")
	}

	seen := make(map[string]struct{}, len(observers))
	copied := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		name := strings.TrimSpace(obs.Name())
		if name == "" {
			return nil, errors.New("observer name must not be empty")
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("duplicate observer name %q", name)
		}
		seen[name] = struct{}{}
		copied = append(copied, obs)
	}

	runner := &Runner{
		observers:  copied,
		dispatcher: dispatcher,
		interval:   interval,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(runner)
	}
	if runner.sleep == nil {
		runner.sleep = time.Sleep
	}
	return runner, nil
}

// Sweep executes every observer once, dispatching all produced reports.
func (r *Runner) Sweep(ctx context.Context) ([]Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]Result, 0, len(r.observers))
	problems := make([]string, 0)

	for _, obs := range r.observers {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		start := time.Now()
		res := Result{Name: obs.Name()}

		reports, err := obs.Observe(ctx)
		res.Err = err
		res.Duration = time.Since(start)

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				results = append(results, res)
				return results, err
			}
			problems = append(problems, fmt.Sprintf("%s: %v", res.Name, err))
			results = append(results, res)
			continue
		}

		for _, produced := range reports {
			if produced.Observer == "" {
				produced.Observer = res.Name
			}
			r.dispatcher.Dispatch(ctx, produced)
		}
		res.Reports = len(reports)
		results = append(results, res)
	}

	if len(problems) > 0 {
		return results, &SweepError{Problems: problems}
	}
	return results, nil
}

// Run executes sweeps until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := r.Sweep(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if r.errorHandler != nil {
				r.errorHandler(err)
			}
		}

		if err := r.sleepWithContext(ctx, r.interval); err != nil {
			return err
		}
	}
}

func (r *Runner) sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.sleep(d)
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
