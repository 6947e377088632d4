package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/999joaquin/CoreTrack/internal/auth"
)

const (
	defaultQueueSize = 1000
	insertTimeout    = 5 * time.Second
)

// Writer persists one activity and returns the stored record.
type Writer interface {
	Insert(ctx context.Context, e Event) (*Record, error)
}

type Option func(*Recorder)

// WithQueueSize sets the capacity of the pending-event buffer.
func WithQueueSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan Event, n)
		}
	}
}

// WithHook registers a callback invoked after each successful insert.
func WithHook(fn func(*Record)) Option {
	return func(r *Recorder) {
		r.hook = fn
	}
}

// Recorder writes activities in the background. Record never blocks and
// never fails: events that cannot be written are logged and dropped.
type Recorder struct {
	writer Writer
	queue  chan Event
	hook   func(*Record)
	logger *slog.Logger

	mu      sync.RWMutex
	started bool
	closed  bool
	done    chan struct{}
}

func NewRecorder(w Writer, logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		writer: w,
		queue:  make(chan Event, defaultQueueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the writer goroutine. Calling it twice is a no-op.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	go r.run()
}

// Stop stops accepting events and waits for queued ones to be written.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	started := r.started
	r.mu.Unlock()

	if !started {
		return
	}
	<-r.done
	r.logger.Info("activity recorder stopped")
}

// Record queues an activity performed by the user in ctx, or by e.ActorID
// when set. An event without an actor is skipped.
func (r *Recorder) Record(ctx context.Context, e Event) {
	if e.ActorID == 0 {
		e.ActorID = auth.UserID(ctx)
	}
	if e.ActorID == 0 {
		r.logger.Warn("activity skipped: no actor", "entity", e.Entity, "action", e.Action)
		return
	}
	if err := e.Validate(); err != nil {
		r.logger.Error("activity rejected", "error", err, "actor_id", e.ActorID)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("activity dropped: recorder stopped", "entity", e.Entity, "action", e.Action)
		return
	}

	select {
	case r.queue <- e:
	default:
		r.logger.Warn("activity dropped: queue full",
			"entity", e.Entity,
			"action", e.Action,
			"actor_id", e.ActorID,
		)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		r.write(e)
	}
}

func (r *Recorder) write(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	rec, err := r.writer.Insert(ctx, e)
	if err != nil {
		r.logger.Error("failed to record activity",
			"error", err,
			"entity", e.Entity,
			"action", e.Action,
			"entity_id", e.EntityID,
			"actor_id", e.ActorID,
		)
		return
	}
	if r.hook != nil && rec != nil {
		r.hook(rec)
	}
}
