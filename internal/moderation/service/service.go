package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"warden/internal/audit"
	"warden/internal/moderation/metrics"
	"warden/internal/moderation/models"
	"warden/internal/notify"
	platformmetrics "warden/internal/platform/metrics"
	settingsModels "warden/internal/settings/models"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/keylock"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

// DefaultCooldown is how long a denied applicant waits before re-applying.
const DefaultCooldown = 24 * time.Hour

// Store is pure I/O for moderation records.
type Store interface {
	Get(ctx context.Context, user id.UserID) (*models.Record, error)
	Save(ctx context.Context, rec *models.Record) error
}

type CooldownLedger interface {
	BlockUntil(ctx context.Context, user id.UserID, until time.Time) error
}

type SettingsReader interface {
	Get(ctx context.Context, guild id.GuildID) (*settingsModels.Settings, error)
}

type Messenger interface {
	SendDirect(ctx context.Context, user id.UserID, text string) error
}

type LogBoard interface {
	PostCard(ctx context.Context, channel id.ChannelID, card models.Card) (id.MessageID, error)
	EditCard(ctx context.Context, channel id.ChannelID, message id.MessageID, card models.Card) error
}

type Roles interface {
	AddRole(ctx context.Context, guild id.GuildID, user id.UserID, role id.RoleID) error
	RemoveRole(ctx context.Context, guild id.GuildID, user id.UserID, role id.RoleID) error
}

type Members interface {
	RemoveMember(ctx context.Context, guild id.GuildID, user id.UserID, reason string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns moderation records and applies moderator decisions. All
// mutations of a user's record are serialized on the "record:<user>" key.
type Service struct {
	store          Store
	ledger         CooldownLedger
	settings       SettingsReader
	messenger      Messenger
	board          LogBoard
	roles          Roles
	members        Members
	locks          *keylock.Map
	cooldown       time.Duration
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	persistence    *platformmetrics.Metrics
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMessenger(m Messenger) Option {
	return func(s *Service) {
		s.messenger = m
	}
}

func WithLogBoard(b LogBoard) Option {
	return func(s *Service) {
		s.board = b
	}
}

func WithRoles(r Roles) Option {
	return func(s *Service) {
		s.roles = r
	}
}

func WithMembers(m Members) Option {
	return func(s *Service) {
		s.members = m
	}
}

// WithCooldown sets the re-application window applied by deny-class decisions.
func WithCooldown(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

func WithLocks(locks *keylock.Map) Option {
	return func(s *Service) {
		s.locks = locks
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPersistenceMetrics(m *platformmetrics.Metrics) Option {
	return func(s *Service) {
		s.persistence = m
	}
}

func New(store Store, ledger CooldownLedger, settings SettingsReader, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("moderation store is required")
	}
	if ledger == nil {
		return nil, errors.New("cooldown ledger is required")
	}
	if settings == nil {
		return nil, errors.New("settings reader is required")
	}
	s := &Service{
		store:    store,
		ledger:   ledger,
		settings: settings,
		cooldown: DefaultCooldown,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	switch {
	case s.messenger == nil:
		return nil, errors.New("messenger is required")
	case s.board == nil:
		return nil, errors.New("log board is required")
	case s.roles == nil:
		return nil, errors.New("roles manager is required")
	case s.members == nil:
		return nil, errors.New("members manager is required")
	}
	if s.locks == nil {
		s.locks = keylock.New()
	}
	return s, nil
}

// Cooldown returns the configured re-application window.
func (s *Service) Cooldown() time.Duration {
	return s.cooldown
}

// Application is a completed questionnaire.
type Application struct {
	UserID    id.UserID
	GuildID   id.GuildID
	Settings  *settingsModels.Settings
	Questions []string
	Answers   []string
}

// Submit records a completed questionnaire as a pending record and posts its
// card to the guild's log channel. A previous decided record for the user is
// replaced. A failed card post is logged and leaves the record without a
// message reference.
func (s *Service) Submit(ctx context.Context, app Application) (*models.Record, error) {
	unlock, err := s.locks.Lock(ctx, recordKey(app.UserID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	previous, err := s.store.Get(ctx, app.UserID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load moderation record")
	}

	st := app.Settings
	if st == nil {
		st = &settingsModels.Settings{GuildID: app.GuildID}
	}
	rec := &models.Record{
		ID:           id.NewRecordID(),
		UserID:       app.UserID,
		GuildID:      app.GuildID,
		Questions:    append([]string(nil), app.Questions...),
		Answers:      append([]string(nil), app.Answers...),
		LogChannelID: st.LogChannelID,
		Status:       models.StatusPending,
		CreatedAt:    requestcontext.Now(ctx),
	}
	rec.Card = notify.ApplicationCard(st, rec)

	if !rec.LogChannelID.IsZero() {
		msg, err := s.board.PostCard(ctx, rec.LogChannelID, rec.Card)
		if err != nil {
			s.deliveryFailed(ctx, "post_card", rec, err)
		} else {
			rec.LogMessageID = msg
		}
	}

	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	s.metrics.IncSubmitted()

	if previous != nil {
		s.emit(ctx, audit.Event{
			Action:   audit.EventApplicationSuperseded,
			UserID:   previous.UserID,
			GuildID:  previous.GuildID,
			RecordID: previous.ID,
			Status:   string(previous.Status),
		})
	}
	s.logger.InfoContext(ctx, "application submitted",
		"user_id", rec.UserID.String(),
		"guild_id", rec.GuildID.String(),
		"record_id", rec.ID.String(),
		"answers", len(rec.Answers),
	)
	s.emit(ctx, audit.Event{
		Action:   audit.EventApplicationSubmitted,
		UserID:   rec.UserID,
		GuildID:  rec.GuildID,
		RecordID: rec.ID,
		Status:   string(rec.Status),
	})
	return rec.Clone(), nil
}

// Get returns the user's current record.
func (s *Service) Get(ctx context.Context, user id.UserID) (*models.Record, error) {
	rec, err := s.store.Get(ctx, user)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no application for user")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load moderation record")
	}
	return rec, nil
}

// HasPending reports whether the user has an application awaiting a decision.
func (s *Service) HasPending(ctx context.Context, user id.UserID) (bool, error) {
	rec, err := s.store.Get(ctx, user)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load moderation record")
	}
	return rec.IsPending(), nil
}

// Decide applies d to the user's pending record exactly once. Deciding an
// already decided record fails with already_decided and changes nothing.
//
// Role changes and notifications after accept or deny are best effort. A
// kick is different: when the member cannot be removed the record stays
// pending, no cooldown is set and delivery_failed is returned.
func (s *Service) Decide(ctx context.Context, user id.UserID, d models.Decision) (*models.Record, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	unlock, err := s.locks.Lock(ctx, recordKey(user))
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, err := s.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	if !rec.IsPending() {
		s.metrics.IncRejected("already_decided")
		return nil, dErrors.New(dErrors.CodeAlreadyDecided, "application was already "+string(rec.Status))
	}

	now := requestcontext.Now(ctx)
	reason := d.Reason
	switch d.Kind {
	case models.KindAccept, models.KindDeny:
		reason = ""
	case models.KindKick:
		if err := s.members.RemoveMember(ctx, rec.GuildID, user, notify.KickReason); err != nil {
			s.deliveryFailed(ctx, "remove_member", rec, err)
			s.metrics.IncRejected("kick_failed")
			return nil, dErrors.Wrap(err, dErrors.CodeDeliveryFailed, "could not remove member from the server")
		}
		reason = notify.KickedDenyReason
	}

	if d.Kind.AppliesCooldown() {
		if err := s.ledger.BlockUntil(ctx, user, now.Add(s.cooldown)); err != nil {
			return nil, err
		}
	}

	if err := rec.Apply(d, reason, now); err != nil {
		return nil, err
	}
	notify.ApplyDecision(&rec.Card, rec)
	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	s.metrics.IncDecision(string(d.Kind))

	if !rec.LogMessageID.IsZero() {
		if err := s.board.EditCard(ctx, rec.LogChannelID, rec.LogMessageID, rec.Card); err != nil {
			s.deliveryFailed(ctx, "edit_card", rec, err)
		}
	}

	if d.Kind == models.KindAccept {
		s.swapRoles(ctx, rec)
		s.sendDirect(ctx, rec, notify.Accepted)
	} else {
		s.sendDirect(ctx, rec, notify.Denied(reason, s.cooldown))
	}

	s.logger.InfoContext(ctx, "decision applied",
		"user_id", user.String(),
		"guild_id", rec.GuildID.String(),
		"record_id", rec.ID.String(),
		"moderator_id", d.ModeratorID.String(),
		"status", string(rec.Status),
	)
	s.emit(ctx, audit.Event{
		Action:   decisionEvent(d.Kind),
		UserID:   user,
		GuildID:  rec.GuildID,
		ActorID:  d.ModeratorID,
		RecordID: rec.ID,
		Status:   string(rec.Status),
		Reason:   reason,
	})
	return rec.Clone(), nil
}

// swapRoles replaces the temporary role with the verified one. Failures are
// reported and never undo the decision.
func (s *Service) swapRoles(ctx context.Context, rec *models.Record) {
	st, err := s.settings.Get(ctx, rec.GuildID)
	if err != nil {
		s.deliveryFailed(ctx, "load_roles", rec, err)
		return
	}
	if !st.TempRoleID.IsZero() {
		if err := s.roles.RemoveRole(ctx, rec.GuildID, rec.UserID, st.TempRoleID); err != nil {
			s.deliveryFailed(ctx, "remove_role", rec, err)
		}
	}
	if !st.VerifiedRoleID.IsZero() {
		if err := s.roles.AddRole(ctx, rec.GuildID, rec.UserID, st.VerifiedRoleID); err != nil {
			s.deliveryFailed(ctx, "add_role", rec, err)
		}
	}
}

func (s *Service) sendDirect(ctx context.Context, rec *models.Record, text string) {
	if err := s.messenger.SendDirect(ctx, rec.UserID, text); err != nil {
		s.deliveryFailed(ctx, "notify_applicant", rec, err)
	}
}

func (s *Service) save(ctx context.Context, rec *models.Record) error {
	err := s.store.Save(ctx, rec)
	if err == nil {
		return nil
	}
	if !dErrors.HasCode(err, dErrors.CodePersistenceFailed) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save moderation record")
	}
	s.logger.ErrorContext(ctx, "records snapshot write failed",
		"user_id", rec.UserID.String(),
		"record_id", rec.ID.String(),
		"error", err,
	)
	s.persistence.IncPersistenceFailure("records")
	return nil
}

func (s *Service) deliveryFailed(ctx context.Context, action string, rec *models.Record, err error) {
	s.metrics.IncDeliveryFailure(action)
	s.logger.WarnContext(ctx, "delivery failed",
		"action", action,
		"user_id", rec.UserID.String(),
		"guild_id", rec.GuildID.String(),
		"record_id", rec.ID.String(),
		"error", err,
	)
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", string(event.Action), "error", err)
	}
}

func decisionEvent(k models.Kind) audit.EventType {
	switch k {
	case models.KindAccept:
		return audit.EventDecisionAccepted
	case models.KindDenyWithReason:
		return audit.EventDecisionDeniedReason
	case models.KindKick:
		return audit.EventDecisionKicked
	default:
		return audit.EventDecisionDenied
	}
}

func recordKey(user id.UserID) string {
	return "record:" + user.String()
}
