package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"warden/internal/cooldown/metrics"
	"warden/internal/cooldown/models"
	platformmetrics "warden/internal/platform/metrics"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
)

// Store is pure I/O for the ledger.
type Store interface {
	Get(ctx context.Context, user id.UserID) (*models.Entry, error)
	Put(ctx context.Context, entry models.Entry) error
	DeleteExpired(ctx context.Context, now time.Time) ([]id.UserID, error)
}

// Ledger maps users to a denied-until time. Reads decide expiry themselves
// and never evict; eviction belongs to SweepExpired.
type Ledger struct {
	store       Store
	metrics     *metrics.Metrics
	persistence *platformmetrics.Metrics
	logger      *slog.Logger
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithPersistenceMetrics counts snapshot write failures.
func WithPersistenceMetrics(m *platformmetrics.Metrics) Option {
	return func(l *Ledger) {
		l.persistence = m
	}
}

func New(store Store, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("cooldown store is required")
	}
	l := &Ledger{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// IsBlocked reports whether user has an entry expiring after now.
func (l *Ledger) IsBlocked(ctx context.Context, user id.UserID, now time.Time) (bool, error) {
	entry, err := l.active(ctx, user, now)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// Check returns a blocked error carrying the remaining time when user is
// blocked at now, and nil otherwise.
func (l *Ledger) Check(ctx context.Context, user id.UserID, now time.Time) error {
	entry, err := l.active(ctx, user, now)
	if err != nil || entry == nil {
		return err
	}
	remaining := entry.Remaining(now)
	return dErrors.Wrap(
		&models.BlockedError{Until: entry.ExpiresAt, Remaining: remaining},
		dErrors.CodeBlocked,
		"You can re-apply in "+models.FormatRemaining(remaining),
	)
}

// BlockUntil overwrites any existing entry. A later call with an earlier
// expiry shortens the block.
func (l *Ledger) BlockUntil(ctx context.Context, user id.UserID, until time.Time) error {
	err := l.store.Put(ctx, models.Entry{UserID: user, ExpiresAt: until})
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodePersistenceFailed) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to set cooldown")
		}
		l.logger.ErrorContext(ctx, "cooldown snapshot write failed",
			"user_id", user.String(),
			"error", err,
		)
		l.persistence.IncPersistenceFailure("cooldowns")
	}
	l.metrics.IncBlocks()
	l.logger.InfoContext(ctx, "cooldown set",
		"user_id", user.String(),
		"expires_at", until,
	)
	return nil
}

// SweepExpired evicts every entry with expiry at or before now and returns
// the evicted users.
func (l *Ledger) SweepExpired(ctx context.Context, now time.Time) ([]id.UserID, error) {
	start := time.Now()
	removed, err := l.store.DeleteExpired(ctx, now)
	l.metrics.ObserveSweep(start, len(removed))
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodePersistenceFailed) {
			return removed, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sweep cooldowns")
		}
		l.logger.ErrorContext(ctx, "cooldown snapshot write failed after sweep",
			"evicted", len(removed),
			"error", err,
		)
		l.persistence.IncPersistenceFailure("cooldowns")
	}
	return removed, nil
}

func (l *Ledger) active(ctx context.Context, user id.UserID, now time.Time) (*models.Entry, error) {
	entry, err := l.store.Get(ctx, user)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read cooldown")
	}
	if !entry.ActiveAt(now) {
		return nil, nil
	}
	return entry, nil
}
