package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"warden/internal/cooldown/metrics"
	"warden/internal/cooldown/models"
	"warden/internal/cooldown/store"
	platformmetrics "warden/internal/platform/metrics"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/httputil"
)

type LedgerSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemory
	metrics *metrics.Metrics
	ledger  *Ledger
	t0      time.Time
	user    id.UserID
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.metrics = metrics.New(prometheus.NewRegistry())
	ledger, err := New(s.store, WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.ledger = ledger
	s.t0 = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	s.user = id.UserID(77)
}

func (s *LedgerSuite) TestIsBlocked() {
	s.Require().NoError(s.ledger.BlockUntil(s.ctx, s.user, s.t0.Add(time.Hour)))

	s.Run("before expiry", func() {
		blocked, err := s.ledger.IsBlocked(s.ctx, s.user, s.t0)
		s.Require().NoError(err)
		s.True(blocked)
	})

	s.Run("at expiry the entry reads as absent", func() {
		blocked, err := s.ledger.IsBlocked(s.ctx, s.user, s.t0.Add(time.Hour))
		s.Require().NoError(err)
		s.False(blocked)
	})

	s.Run("reads never evict", func() {
		s.Equal(1, s.store.Len())
	})

	s.Run("unknown user", func() {
		blocked, err := s.ledger.IsBlocked(s.ctx, id.UserID(1), s.t0)
		s.Require().NoError(err)
		s.False(blocked)
	})
}

func (s *LedgerSuite) TestBlockUntilOverwrites() {
	s.Require().NoError(s.ledger.BlockUntil(s.ctx, s.user, s.t0.Add(24*time.Hour)))
	s.Require().NoError(s.ledger.BlockUntil(s.ctx, s.user, s.t0.Add(2*time.Hour)))

	blocked, err := s.ledger.IsBlocked(s.ctx, s.user, s.t0.Add(3*time.Hour))
	s.Require().NoError(err)
	s.False(blocked, "the later, shorter block replaces the earlier one")
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.Blocks))
}

func (s *LedgerSuite) TestCheckReportsRemainingTime() {
	// Scenario: blocked until T+5h, starting at T+1h leaves about 4h.
	s.Require().NoError(s.ledger.BlockUntil(s.ctx, s.user, s.t0.Add(5*time.Hour)))

	err := s.ledger.Check(s.ctx, s.user, s.t0.Add(time.Hour))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBlocked))
	s.Equal("You can re-apply in 4h 0m", dErrors.MessageOf(err))

	var blocked *models.BlockedError
	s.Require().True(errors.As(err, &blocked))
	s.Equal(4*time.Hour, blocked.Remaining)

	var ra httputil.RetryAfter
	s.Require().True(errors.As(err, &ra))
	s.Equal(int64(4*3600), ra.RetryAfterSeconds())

	s.NoError(s.ledger.Check(s.ctx, s.user, s.t0.Add(5*time.Hour)))
}

func (s *LedgerSuite) TestSweepExpired() {
	s.Require().NoError(s.ledger.BlockUntil(s.ctx, 1, s.t0.Add(-time.Minute)))
	s.Require().NoError(s.ledger.BlockUntil(s.ctx, 2, s.t0))
	s.Require().NoError(s.ledger.BlockUntil(s.ctx, 3, s.t0.Add(time.Minute)))

	removed, err := s.ledger.SweepExpired(s.ctx, s.t0)
	s.Require().NoError(err)
	s.ElementsMatch([]id.UserID{1, 2}, removed)
	s.Equal(1, s.store.Len())
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.Swept))

	blocked, err := s.ledger.IsBlocked(s.ctx, 3, s.t0)
	s.Require().NoError(err)
	s.True(blocked)

	again, err := s.ledger.SweepExpired(s.ctx, s.t0)
	s.Require().NoError(err)
	s.Empty(again)
}

func (s *LedgerSuite) TestSweepConcurrentWithReads() {
	for u := id.UserID(1); u <= 100; u++ {
		s.Require().NoError(s.ledger.BlockUntil(s.ctx, u, s.t0.Add(time.Duration(u%2)*time.Hour)))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = s.ledger.SweepExpired(s.ctx, s.t0)
	}()
	go func() {
		defer wg.Done()
		for u := id.UserID(1); u <= 100; u++ {
			blocked, err := s.ledger.IsBlocked(s.ctx, u, s.t0)
			s.NoError(err)
			s.Equal(u%2 == 1, blocked)
		}
	}()
	wg.Wait()
	s.Equal(50, s.store.Len())
}

func (s *LedgerSuite) TestPersistenceFailureIsTolerated() {
	dir := filepath.Join(s.T().TempDir(), "data")
	snap, err := store.NewSnapshot(dir)
	s.Require().NoError(err)
	pm := platformmetrics.New(prometheus.NewRegistry())
	ledger, err := New(snap, WithPersistenceMetrics(pm))
	s.Require().NoError(err)
	s.Require().NoError(os.RemoveAll(dir))

	s.Require().NoError(ledger.BlockUntil(s.ctx, s.user, s.t0.Add(time.Hour)))
	blocked, err := ledger.IsBlocked(s.ctx, s.user, s.t0)
	s.Require().NoError(err)
	s.True(blocked, "in-memory state stays authoritative")
	s.Equal(float64(1), testutil.ToFloat64(pm.PersistenceFailures.WithLabelValues("cooldowns")))
}
