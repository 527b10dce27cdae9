// Package reaper periodically evicts expired cooldown entries.
package reaper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"warden/internal/audit"
	id "warden/pkg/domain"
)

// DefaultInterval is the sweep period.
const DefaultInterval = time.Hour

// Sweeper evicts entries that expired at or before now.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) ([]id.UserID, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Worker sweeps the ledger on a fixed interval. A failed sweep is logged and
// retried on the next tick.
type Worker struct {
	ledger         Sweeper
	interval       time.Duration
	now            func() time.Time
	auditPublisher AuditPublisher
	logger         *slog.Logger
}

type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithClock replaces the wall clock used to decide expiry.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(w *Worker) {
		w.auditPublisher = publisher
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func New(ledger Sweeper, opts ...Option) (*Worker, error) {
	if ledger == nil {
		return nil, errors.New("cooldown ledger is required")
	}
	w := &Worker{
		ledger:   ledger,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run sweeps every interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "cooldown reaper started", "interval", w.interval.String())
	for {
		select {
		case <-ticker.C:
			if _, err := w.SweepOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "cooldown sweep failed", "error", err)
			}
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "cooldown reaper stopped")
			return nil
		}
	}
}

// SweepOnce runs a single sweep and returns the number of evicted entries.
func (w *Worker) SweepOnce(ctx context.Context) (int, error) {
	now := w.now()
	removed, err := w.ledger.SweepExpired(ctx, now)
	for _, user := range removed {
		w.emit(ctx, audit.Event{
			Action:    audit.EventCooldownExpired,
			Timestamp: now,
			UserID:    user,
		})
	}
	if err != nil {
		return len(removed), err
	}
	if len(removed) > 0 {
		w.logger.InfoContext(ctx, "expired cooldowns evicted", "count", len(removed))
	}
	return len(removed), nil
}

func (w *Worker) emit(ctx context.Context, event audit.Event) {
	if w.auditPublisher == nil {
		return
	}
	if err := w.auditPublisher.Emit(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "audit emit failed", "action", string(event.Action), "error", err)
	}
}
