package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	id "warden/pkg/domain"
	"warden/pkg/requestcontext"
)

// ErrBufferFull is returned when the async buffer cannot take another event.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher captures structured audit events. In sync mode Emit appends
// directly; with WithAsyncBuffer a Worker drains a bounded channel so a slow
// sink never holds up a state transition.
type Publisher struct {
	store   Store
	logger  *slog.Logger
	dropped prometheus.Counter

	bufSize int
	inbox   chan Event
	done    chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

type Option func(*Publisher)

// WithAsyncBuffer enables async mode with a buffer of n events.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithDroppedCounter counts events dropped on a full buffer.
func WithDroppedCounter(c prometheus.Counter) Option {
	return func(p *Publisher) {
		p.dropped = c
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize > 0 {
		p.inbox = make(chan Event, p.bufSize)
		p.done = make(chan struct{})
		worker := NewWorker(store, p.inbox, p.logger)
		go func() {
			defer close(p.done)
			worker.Run(context.Background())
		}()
	}
	return p
}

// Emit records an event. Missing id, timestamp and request id are filled in.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.dropped != nil {
			p.dropped.Inc()
		}
		p.logger.WarnContext(ctx, "audit event dropped",
			"action", string(event.Action),
			"user_id", event.UserID.String(),
		)
		return ErrBufferFull
	}
}

// List returns a user's events when the store supports reads.
func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]Event, error) {
	lister, ok := p.store.(Lister)
	if !ok {
		return nil, errors.New("audit store does not support listing")
	}
	return lister.ListByUser(ctx, userID)
}

// Close stops accepting async events and waits until the buffer is drained.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.inbox == nil {
			return
		}
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
		<-p.done
	})
}
