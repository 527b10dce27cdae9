package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,CooldownLedger,SettingsReader,Messenger,LogBoard,Roles,Members,AuditPublisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"warden/internal/audit"
	auditstore "warden/internal/audit/store"
	cooldownService "warden/internal/cooldown/service"
	cooldownStore "warden/internal/cooldown/store"
	"warden/internal/moderation/metrics"
	"warden/internal/moderation/models"
	"warden/internal/moderation/service/mocks"
	"warden/internal/moderation/store"
	"warden/internal/notify"
	settingsModels "warden/internal/settings/models"
	settingsStore "warden/internal/settings/store"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/requestcontext"
)

// =============================================================================
// Moderation Service Test Suite
// =============================================================================
// Stores and the cooldown ledger are real in-memory implementations; only the
// outbound chat collaborators are mocked.

type ModerationServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	messenger *mocks.MockMessenger
	board     *mocks.MockLogBoard
	roles     *mocks.MockRoles
	members   *mocks.MockMembers

	store    *store.InMemory
	ledger   *cooldownService.Ledger
	settings *settingsStore.InMemory
	audit    *auditstore.InMemoryStore
	metrics  *metrics.Metrics
	service  *Service

	ctx   context.Context
	now   time.Time
	guild id.GuildID
	user  id.UserID
	mod   id.UserID
}

func TestModerationServiceSuite(t *testing.T) {
	suite.Run(t, new(ModerationServiceSuite))
}

func (s *ModerationServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.messenger = mocks.NewMockMessenger(s.ctrl)
	s.board = mocks.NewMockLogBoard(s.ctrl)
	s.roles = mocks.NewMockRoles(s.ctrl)
	s.members = mocks.NewMockMembers(s.ctrl)

	s.store = store.NewInMemory()
	ledger, err := cooldownService.New(cooldownStore.NewInMemory())
	s.Require().NoError(err)
	s.ledger = ledger
	s.settings = settingsStore.NewInMemory()
	s.audit = auditstore.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())

	s.now = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.guild = id.GuildID(500)
	s.user = id.UserID(42)
	s.mod = id.UserID(7)

	s.Require().NoError(s.settings.Save(s.ctx, s.guildSettings()))

	svc, err := New(s.store, s.ledger, s.settings,
		WithMessenger(s.messenger),
		WithLogBoard(s.board),
		WithRoles(s.roles),
		WithMembers(s.members),
		WithMetrics(s.metrics),
		WithAuditPublisher(audit.NewPublisher(s.audit)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ModerationServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ModerationServiceSuite) guildSettings() *settingsModels.Settings {
	return &settingsModels.Settings{
		GuildID:          s.guild,
		WelcomeChannelID: 10,
		LogChannelID:     11,
		TempRoleID:       20,
		VerifiedRoleID:   21,
		AdminRoleID:      22,
		Questions:        []string{"Name?", "Age?"},
	}
}

// submit creates a pending record whose card was posted as message 900.
func (s *ModerationServiceSuite) submit() *models.Record {
	s.board.EXPECT().PostCard(gomock.Any(), id.ChannelID(11), gomock.Any()).Return(id.MessageID(900), nil)
	rec, err := s.service.Submit(s.ctx, Application{
		UserID:    s.user,
		GuildID:   s.guild,
		Settings:  s.guildSettings(),
		Questions: []string{"Name?", "Age?"},
		Answers:   []string{"Alice", "30"},
	})
	s.Require().NoError(err)
	return rec
}

func (s *ModerationServiceSuite) blocked(at time.Time) bool {
	blocked, err := s.ledger.IsBlocked(s.ctx, s.user, at)
	s.Require().NoError(err)
	return blocked
}

// =============================================================================
// Constructor
// =============================================================================

func (s *ModerationServiceSuite) TestNew() {
	s.Run("nil store", func() {
		_, err := New(nil, s.ledger, s.settings)
		s.ErrorContains(err, "moderation store is required")
	})
	s.Run("nil ledger", func() {
		_, err := New(s.store, nil, s.settings)
		s.ErrorContains(err, "cooldown ledger is required")
	})
	s.Run("missing collaborator", func() {
		_, err := New(s.store, s.ledger, s.settings, WithMessenger(s.messenger))
		s.ErrorContains(err, "log board is required")
	})
	s.Run("default cooldown", func() {
		s.Equal(24*time.Hour, s.service.Cooldown())
	})
}

// =============================================================================
// Submit
// =============================================================================

func (s *ModerationServiceSuite) TestSubmit() {
	s.Run("creates a pending record with answers in order", func() {
		rec := s.submit()
		s.Equal(models.StatusPending, rec.Status)
		s.Equal([]string{"Alice", "30"}, rec.Answers)
		s.Equal(id.MessageID(900), rec.LogMessageID)
		s.Equal(s.now, rec.CreatedAt)
		s.False(rec.ID.IsZero())

		stored, err := s.service.Get(s.ctx, s.user)
		s.Require().NoError(err)
		s.Equal(rec.ID, stored.ID)
		s.Equal("<@&22> New verification application!", stored.Card.Content)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.Submitted))
	})

	s.Run("card post failure keeps the record", func() {
		s.board.EXPECT().PostCard(gomock.Any(), gomock.Any(), gomock.Any()).Return(id.MessageID(0), errors.New("missing access"))
		rec, err := s.service.Submit(s.ctx, Application{
			UserID: 43, GuildID: s.guild, Settings: s.guildSettings(),
			Questions: []string{"Q"}, Answers: []string{""},
		})
		s.Require().NoError(err)
		s.True(rec.LogMessageID.IsZero())
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.DeliveryFailures.WithLabelValues("post_card")))
	})
}

func (s *ModerationServiceSuite) TestResubmissionSupersedesDecidedRecord() {
	first := s.submit()
	s.messenger.EXPECT().SendDirect(gomock.Any(), s.user, gomock.Any()).Return(nil)
	s.board.EXPECT().EditCard(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	_, err := s.service.Decide(s.ctx, s.user, models.Decision{Kind: models.KindDeny, ModeratorID: s.mod})
	s.Require().NoError(err)

	second := s.submit()
	s.NotEqual(first.ID, second.ID)
	s.Equal(models.StatusPending, second.Status)

	events, err := s.audit.ListByUser(s.ctx, s.user)
	s.Require().NoError(err)
	var superseded []audit.Event
	for _, e := range events {
		if e.Action == audit.EventApplicationSuperseded {
			superseded = append(superseded, e)
		}
	}
	s.Require().Len(superseded, 1)
	s.Equal(first.ID, superseded[0].RecordID)
	s.Equal(string(models.StatusDenied), superseded[0].Status)
}

// =============================================================================
// Decide
// =============================================================================

func (s *ModerationServiceSuite) TestDenyThenDenyAgain() {
	// Deny without reason, then a second deny on the same record.
	s.submit()

	var edited models.Card
	s.board.EXPECT().EditCard(gomock.Any(), id.ChannelID(11), id.MessageID(900), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.ChannelID, _ id.MessageID, card models.Card) error {
			edited = card
			return nil
		})
	s.messenger.EXPECT().SendDirect(gomock.Any(), s.user, notify.Denied("", 24*time.Hour)).Return(nil)

	rec, err := s.service.Decide(s.ctx, s.user, models.Decision{Kind: models.KindDeny, ModeratorID: s.mod})
	s.Require().NoError(err)
	s.Equal(models.StatusDenied, rec.Status)
	s.Equal(s.mod, rec.DecidedBy)
	s.Empty(rec.Reason)
	s.True(s.blocked(s.now.Add(24*time.Hour - time.Second)))
	s.False(s.blocked(s.now.Add(24 * time.Hour)))

	status, ok := edited.StatusField()
	s.Require().True(ok)
	s.Contains(status, "Denied by <@7>")

	again, err := s.service.Decide(s.ctx, s.user, models.Decision{Kind: models.KindDeny, ModeratorID: 8})
	s.Nil(again)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyDecided))

	stored, err := s.service.Get(s.ctx, s.user)
	s.Require().NoError(err)
	s.Equal(s.mod, stored.DecidedBy)
	statusFields := 0
	for _, f := range stored.Card.Fields {
		if f.Name == models.StatusFieldName {
			statusFields++
		}
	}
	s.Equal(1, statusFields)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.DecisionRejected.WithLabelValues("already_decided")))
}

func (s *ModerationServiceSuite) TestAccept() {
	s.Run("swaps roles and notifies", func() {
		s.submit()
		gomock.InOrder(
			s.board.EXPECT().EditCard(gomock.Any(), id.ChannelID(11), id.MessageID(900), gomock.Any()).Return(nil),
			s.roles.EXPECT().RemoveRole(gomock.Any(), s.guild, s.user, id.RoleID(20)).Return(nil),
			s.roles.EXPECT().AddRole(gomock.Any(), s.guild, s.user, id.RoleID(21)).Return(nil),
			s.messenger.EXPECT().SendDirect(gomock.Any(), s.user, notify.Accepted).Return(nil),
		)

		rec, err := s.service.Decide(s.ctx, s.user, models.Decision{Kind: models.KindAccept, ModeratorID: s.mod, Reason: "ignored"})
		s.Require().NoError(err)
		s.Equal(models.StatusAccepted, rec.Status)
		s.Empty(rec.Reason)
		s.False(s.blocked(s.now))
	})

	s.Run("role failures do not roll back the status", func() {
		s.user = 44
		s.submit()
		s.board.EXPECT().EditCard(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		s.roles.EXPECT().RemoveRole(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("forbidden"))
		s.roles.EXPECT().AddRole(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("forbidden"))
		s.messenger.EXPECT().SendDirect(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("dm closed"))

		rec, err := s.service.Decide(s.ctx, s.user, models.Decision{Kind: models.KindAccept, ModeratorID: s.mod})
		s.Require().NoError(err)
		s.Equal(models.StatusAccepted, rec.Status)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.DeliveryFailures.WithLabelValues("add_role")))
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.DeliveryFailures.WithLabelValues("notify_applicant")))
	})
}

func (s *ModerationServiceSuite) TestDenyWithReason() {
	s.Run("reason is required", func() {
		_, err := s.service.Decide(s.ctx, s.user, models.Decision{Kind: models.KindDenyWithReason, ModeratorID: s.mod})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("reason is stored and sent", func() {
		s.submit()
		s.board.EXPECT().EditCard(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		s.messenger.EXPECT().SendDirect(gomock.Any(), s.user, notify.Denied("too young", 24*time.Hour)).Return(nil)

		rec, err := s.service.Decide(s.ctx, s.user, models.Decision{Kind: models.KindDenyWithReason, ModeratorID: s.mod, Reason: "too young"})
		s.Require().NoError(err)
		s.Equal(models.StatusDeniedWithReason, rec.Status)
		s.Equal("too young", rec.Reason)
		s.True(s.blocked(s.now))
	})
}

func (s *ModerationServiceSuite) TestKick() {
	s.Run("failed removal leaves the record pending without cooldown", func() {
		s.submit()
		s.members.EXPECT().RemoveMember(gomock.Any(), s.guild, s.user, notify.KickReason).Return(errors.New("forbidden"))

		rec, err := s.service.Decide(s.ctx, s.user, models.Decision{Kind: models.KindKick, ModeratorID: s.mod})
		s.Nil(rec)
		s.True(dErrors.HasCode(err, dErrors.CodeDeliveryFailed))
		s.False(s.blocked(s.now))

		stored, err := s.service.Get(s.ctx, s.user)
		s.Require().NoError(err)
		s.True(stored.IsPending())
		_, ok := stored.Card.StatusField()
		s.False(ok)
	})

	s.Run("successful removal is an implied deny with reason", func() {
		s.members.EXPECT().RemoveMember(gomock.Any(), s.guild, s.user, notify.KickReason).Return(nil)
		s.board.EXPECT().EditCard(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		s.messenger.EXPECT().SendDirect(gomock.Any(), s.user, gomock.Any()).Return(errors.New("not a member"))

		rec, err := s.service.Decide(s.ctx, s.user, models.Decision{Kind: models.KindKick, ModeratorID: s.mod})
		s.Require().NoError(err)
		s.Equal(models.StatusKicked, rec.Status)
		s.Equal(notify.KickedDenyReason, rec.Reason)
		s.True(s.blocked(s.now))
	})
}

func (s *ModerationServiceSuite) TestDecideUnknownUser() {
	_, err := s.service.Decide(s.ctx, id.UserID(999), models.Decision{Kind: models.KindAccept, ModeratorID: s.mod})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ModerationServiceSuite) TestConcurrentDecisionsApplyOnce() {
	s.submit()
	s.board.EXPECT().EditCard(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)
	s.messenger.EXPECT().SendDirect(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	const goroutines = 20
	var wg sync.WaitGroup
	var applied, rejected atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.service.Decide(s.ctx, s.user, models.Decision{Kind: models.KindDeny, ModeratorID: id.UserID(100 + i)})
			switch {
			case err == nil:
				applied.Add(1)
			case dErrors.HasCode(err, dErrors.CodeAlreadyDecided):
				rejected.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), applied.Load())
	s.Equal(int32(goroutines-1), rejected.Load())
}

func (s *ModerationServiceSuite) TestHasPending() {
	pending, err := s.service.HasPending(s.ctx, s.user)
	s.Require().NoError(err)
	s.False(pending)

	s.submit()
	pending, err = s.service.HasPending(s.ctx, s.user)
	s.Require().NoError(err)
	s.True(pending)
}
