// Package jobs is an in-process scheduler for recurring named jobs with
// bounded retries. Each job runs on its own ticker loop; a failing
// attempt is retried with exponential backoff until the attempt budget
// is spent, then that cycle is abandoned and the next tick fires as
// scheduled. An optional cross-process guard turns concurrent runs of
// the same job into skips.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/0xNerd/degen-server/internal/metrics"
)

// ErrDuplicateJob is returned by Add when a job with the same name is
// already registered.
var ErrDuplicateJob = errors.New("duplicate job name")

// State is the position of a job in its attempt state machine.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateDone      State = "done"
	StateRetrying  State = "retrying"
	StateAbandoned State = "abandoned"
	StateSkipped   State = "skipped"
)

// Backoff is the retry delay schedule: Base * Factor^retry, capped at Max.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Max    time.Duration
}

// Delay returns the wait before the given retry (0-based). The sequence
// is non-decreasing and never exceeds Max.
func (b Backoff) Delay(retry int) time.Duration {
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	delay := time.Duration(float64(b.Base) * math.Pow(factor, float64(retry)))
	if b.Max > 0 && delay > b.Max {
		return b.Max
	}
	return delay
}

// Spec describes one recurring job.
type Spec struct {
	Name     string
	Every    time.Duration
	Attempts int
	Backoff  Backoff
	Run      func(ctx context.Context) error

	// Guard, when set, must be acquired before an attempt cycle runs.
	// A held guard skips the cycle instead of failing it.
	Guard Guard
}

// Guard is a single-holder lock shared between processes.
type Guard interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Event is one state transition of a job, surfaced to the events sink.
type Event struct {
	Job     string
	Attempt int
	State   State
	Delay   time.Duration
	Err     error
}

// Queue schedules registered jobs. Add before Start; Stop waits for
// in-flight attempts to drain.
type Queue struct {
	clock  clockwork.Clock
	events func(Event)

	mu      sync.Mutex
	jobs    map[string]*Spec
	started bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewQueue creates a queue. events receives every state transition;
// LogAndCount is the standard sink.
func NewQueue(clock clockwork.Clock, events func(Event)) *Queue {
	if events == nil {
		events = func(Event) {}
	}
	return &Queue{
		clock:  clock,
		events: events,
		jobs:   make(map[string]*Spec),
		stopCh: make(chan struct{}),
	}
}

// Add registers a job. Duplicate names are rejected so two pipelines
// can never race on the same schedule.
func (q *Queue) Add(spec Spec) error {
	if spec.Name == "" {
		return errors.New("job name required")
	}
	if spec.Run == nil {
		return fmt.Errorf("job %s has no run function", spec.Name)
	}
	if spec.Attempts < 1 {
		spec.Attempts = 1
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return fmt.Errorf("queue already started, cannot add %s", spec.Name)
	}
	if _, exists := q.jobs[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, spec.Name)
	}
	q.jobs[spec.Name] = &spec
	return nil
}

// Start launches the ticker loop of every registered job. ctx bounds
// the attempts themselves; Stop ends the loops.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	for _, spec := range q.jobs {
		q.wg.Add(1)
		go q.runLoop(ctx, spec)
	}
}

// Stop ends all job loops and waits for in-flight attempts.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	close(q.stopCh)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) runLoop(ctx context.Context, spec *Spec) {
	defer q.wg.Done()

	ticker := q.clock.NewTicker(spec.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			q.RunNow(ctx, spec)
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunNow executes one full attempt cycle of spec synchronously:
// acquire the guard, run with retries until success or the attempt
// budget is spent. The ticker loops and Kick both funnel through here.
func (q *Queue) RunNow(ctx context.Context, spec *Spec) {
	q.events(Event{Job: spec.Name, State: StatePending})

	if spec.Guard != nil {
		held, err := spec.Guard.TryAcquire(ctx)
		if err != nil {
			slog.Warn("job guard unavailable, running unguarded", "job", spec.Name, "error", err)
		} else if !held {
			q.events(Event{Job: spec.Name, State: StateSkipped})
			return
		} else {
			defer func() {
				if err := spec.Guard.Release(ctx); err != nil {
					slog.Warn("job guard release failed", "job", spec.Name, "error", err)
				}
			}()
		}
	}

	for attempt := 1; attempt <= spec.Attempts; attempt++ {
		q.events(Event{Job: spec.Name, Attempt: attempt, State: StateRunning})

		err := spec.Run(ctx)
		if err == nil {
			q.events(Event{Job: spec.Name, Attempt: attempt, State: StateDone})
			return
		}

		if attempt == spec.Attempts {
			q.events(Event{Job: spec.Name, Attempt: attempt, State: StateAbandoned, Err: err})
			return
		}

		delay := spec.Backoff.Delay(attempt - 1)
		q.events(Event{Job: spec.Name, Attempt: attempt, State: StateRetrying, Delay: delay, Err: err})

		select {
		case <-q.clock.After(delay):
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Kick runs the named job once, immediately, on its own goroutine. The
// run counts as in-flight: Stop waits for it like a scheduled one.
// Reports whether the run was launched.
func (q *Queue) Kick(ctx context.Context, name string) bool {
	q.mu.Lock()
	spec, ok := q.jobs[name]
	if !ok || !q.started {
		q.mu.Unlock()
		return false
	}
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()
		q.RunNow(ctx, spec)
	}()
	return true
}

// LogAndCount is the standard events sink: structured logs plus the
// job attempt counters.
func LogAndCount(e Event) {
	switch e.State {
	case StateDone:
		slog.Info("job done", "job", e.Job, "attempt", e.Attempt)
		metrics.JobAttemptsTotal.WithLabelValues(e.Job, "done").Inc()
	case StateRetrying:
		slog.Warn("job attempt failed, retrying", "job", e.Job, "attempt", e.Attempt, "delay", e.Delay, "error", e.Err)
		metrics.JobAttemptsTotal.WithLabelValues(e.Job, "retried").Inc()
	case StateAbandoned:
		slog.Error("job abandoned after attempt budget", "job", e.Job, "attempts", e.Attempt, "error", e.Err)
		metrics.JobAttemptsTotal.WithLabelValues(e.Job, "abandoned").Inc()
	case StateSkipped:
		slog.Info("job skipped, lease held elsewhere", "job", e.Job)
		metrics.JobAttemptsTotal.WithLabelValues(e.Job, "skipped").Inc()
	}
}
