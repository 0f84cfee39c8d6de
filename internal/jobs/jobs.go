// Package jobs runs deferred work in-process. A Runner owns one timer per
// scheduled job and retries failing handlers with exponential backoff.
// Callers that need the work to be durable across restarts must compensate
// at the call site when scheduling fails.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/oklog/ulid/v2"

	"github.com/parallel588/margaret/internal/log"
)

type Payload map[string]interface{}

// Int64 reads a numeric payload value. Payloads survive only in memory
// today, but handlers stay tolerant of decoded-from-JSON shapes.
func (p Payload) Int64(key string) (int64, error) {
	switch v := p[key].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("payload %q is %T, not a number", key, p[key])
	}
}

type HandlerFunc func(ctx context.Context, payload Payload) error

// Scheduler enqueues work to run at a point in the future.
type Scheduler interface {
	Schedule(ctx context.Context, kind string, runAt time.Time, payload Payload) (string, error)
	Cancel(id string) bool
}

var _ Scheduler = (*Runner)(nil)

type Runner struct {
	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	timers   map[string]*time.Timer
	closed   bool

	wg sync.WaitGroup
}

func NewRunner(ctx context.Context) *Runner {
	baseCtx, cancel := context.WithCancel(ctx)
	return &Runner{
		baseCtx:  baseCtx,
		cancel:   cancel,
		handlers: make(map[string]HandlerFunc),
		timers:   make(map[string]*time.Timer),
	}
}

// Handle registers the handler for one kind. Registration happens during
// startup, before any Schedule call for that kind.
func (r *Runner) Handle(kind string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

func (r *Runner) Schedule(ctx context.Context, kind string, runAt time.Time, payload Payload) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return "", fmt.Errorf("jobs: runner is closed")
	}
	handler, ok := r.handlers[kind]
	if !ok {
		return "", fmt.Errorf("jobs: no handler registered for kind %q", kind)
	}

	id := ulid.Make().String()
	delay := time.Until(runAt)
	if delay < 0 {
		delay = 0
	}

	logger := log.FromContext(ctx)
	r.wg.Add(1)
	r.timers[id] = time.AfterFunc(delay, func() {
		defer r.wg.Done()
		r.forget(id)
		r.run(logger, id, kind, handler, payload)
	})

	logger.Info("job scheduled", "id", id, "kind", kind, "runAt", runAt)
	return id, nil
}

// Cancel stops a pending job. It reports false when the job already fired
// or is unknown.
func (r *Runner) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	timer, ok := r.timers[id]
	if !ok {
		return false
	}
	delete(r.timers, id)
	if timer.Stop() {
		r.wg.Done()
		return true
	}
	return false
}

// Close stops pending timers and waits for in-flight handlers.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	for id, timer := range r.timers {
		delete(r.timers, id)
		if timer.Stop() {
			r.wg.Done()
		}
	}
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

func (r *Runner) forget(id string) {
	r.mu.Lock()
	delete(r.timers, id)
	r.mu.Unlock()
}

func (r *Runner) run(logger logr.Logger, id, kind string, handler HandlerFunc, payload Payload) {
	op := func() error {
		return handler(r.baseCtx, payload)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), r.baseCtx)
	err := backoff.RetryNotify(op, policy, func(err error, next time.Duration) {
		logger.Info("job attempt failed, retrying", "id", id, "kind", kind, "error", err.Error(), "backoff", next)
	})
	if err != nil {
		logger.Error(err, "job gave up", "id", id, "kind", kind)
		return
	}
	logger.Info("job done", "id", id, "kind", kind)
}
