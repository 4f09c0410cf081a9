package derive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrFailed is matched by every main or thumbnail derivation failure.
var ErrFailed = errors.New("derivation failed")

// Error is a failed invocation. Reason is short and safe to show callers;
// Err carries the engine detail and is only meant for logs.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("derivation failed: %s", e.Reason)
	}
	return fmt.Sprintf("derivation failed: %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFailed) hold for every *Error.
func (e *Error) Is(target error) bool {
	return target == ErrFailed
}

// Invocation is one run of the external engine.
type Invocation struct {
	Input  string
	Output string
	Args   []string
}

// Engine runs a single invocation to completion.
// Implementations report progress as a percentage in [0, 100].
type Engine interface {
	Run(ctx context.Context, inv Invocation, progress func(percent float64)) error
}

// EventKind classifies observer events.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventProgress EventKind = "progress"
	EventFinished EventKind = "finished"
)

// Event is an observational notification. It never affects the outcome.
type Event struct {
	Kind    EventKind
	Percent float64
}

// Observer receives events for one invocation.
type Observer func(Event)

// Outcome is the single resolved result of an invocation.
type Outcome struct {
	Output   string
	Err      error
	Duration time.Duration
}

// OK reports whether the invocation produced its artifact.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Job is an invocation in flight.
type Job struct {
	done    chan struct{}
	outcome Outcome
}

// Done is closed once the outcome is resolved.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the outcome is resolved or ctx ends. Giving up on ctx
// does not stop the job; cancel the context passed to Start for that.
func (j *Job) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-j.done:
		return j.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Executor launches engine invocations, bounding how many run at once.
type Executor struct {
	engine Engine
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// DefaultMaxConcurrent bounds engine processes when no limit is configured.
const DefaultMaxConcurrent = 4

// WithMaxConcurrent sets how many engine processes may run at once.
func WithMaxConcurrent(n int64) Option {
	return func(e *Executor) {
		if n > 0 {
			e.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an executor around engine.
func New(engine Engine, options ...Option) (*Executor, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}

	e := &Executor{
		engine: engine,
		sem:    semaphore.NewWeighted(DefaultMaxConcurrent),
		logger: slog.Default(),
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// Start launches inv and returns immediately. The job resolves exactly once:
// success when the engine returned cleanly and the output exists, failure
// otherwise. Cancelling ctx stops the engine and fails the job.
func (e *Executor) Start(ctx context.Context, inv Invocation, observer Observer) *Job {
	job := &Job{done: make(chan struct{})}
	go func() {
		defer close(job.done)
		job.outcome = e.run(ctx, inv, observer)
	}()
	return job
}

// Run is Start followed by Wait.
func (e *Executor) Run(ctx context.Context, inv Invocation, observer Observer) Outcome {
	outcome, _ := e.Start(ctx, inv, observer).Wait(context.Background())
	return outcome
}

func (e *Executor) run(ctx context.Context, inv Invocation, observer Observer) Outcome {
	started := time.Now()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return Outcome{Output: inv.Output, Err: &Error{Reason: "cancelled before start", Err: err}}
	}
	defer e.sem.Release(1)

	notify(e.logger, observer, Event{Kind: EventStarted})
	err := e.engine.Run(ctx, inv, func(percent float64) {
		notify(e.logger, observer, Event{Kind: EventProgress, Percent: percent})
	})
	notify(e.logger, observer, Event{Kind: EventFinished})

	outcome := Outcome{Output: inv.Output, Duration: time.Since(started)}
	switch {
	case ctx.Err() != nil:
		outcome.Err = &Error{Reason: "cancelled", Err: ctx.Err()}
	case err != nil:
		outcome.Err = &Error{Reason: "engine reported an error", Err: err}
	default:
		if info, statErr := os.Stat(inv.Output); statErr != nil || info.Size() == 0 {
			outcome.Err = &Error{Reason: "engine produced no output", Err: statErr}
		}
	}
	return outcome
}

func notify(logger *slog.Logger, observer Observer, ev Event) {
	if observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("derivation observer panicked", "event", ev.Kind, "panic", r)
		}
	}()
	observer(ev)
}
