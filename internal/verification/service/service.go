package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"warden/internal/audit"
	moderationModels "warden/internal/moderation/models"
	moderationService "warden/internal/moderation/service"
	"warden/internal/notify"
	settingsModels "warden/internal/settings/models"
	"warden/internal/verification/metrics"
	"warden/internal/verification/models"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/keylock"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

// SessionStore is pure I/O for active sessions.
type SessionStore interface {
	Get(ctx context.Context, user id.UserID) (*models.Session, error)
	Put(ctx context.Context, sess *models.Session) error
	Delete(ctx context.Context, user id.UserID) (bool, error)
}

type SettingsReader interface {
	Get(ctx context.Context, guild id.GuildID) (*settingsModels.Settings, error)
}

// CooldownChecker returns a blocked error while user is cooling down.
type CooldownChecker interface {
	Check(ctx context.Context, user id.UserID, now time.Time) error
}

// Moderation receives completed questionnaires.
type Moderation interface {
	HasPending(ctx context.Context, user id.UserID) (bool, error)
	Submit(ctx context.Context, app moderationService.Application) (*moderationModels.Record, error)
}

type Messenger interface {
	SendDirect(ctx context.Context, user id.UserID, text string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs the questionnaire state machine:
// no session -> active -> completed | abandoned.
// Every transition for a user runs under the "session:<user>" key, so
// concurrent answers from the same user are applied in arrival order.
type Service struct {
	sessions       SessionStore
	settings       SettingsReader
	cooldowns      CooldownChecker
	moderation     Moderation
	messenger      Messenger
	locks          *keylock.Map
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
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

func New(
	sessions SessionStore,
	settings SettingsReader,
	cooldowns CooldownChecker,
	moderation Moderation,
	messenger Messenger,
	opts ...Option,
) (*Service, error) {
	switch {
	case sessions == nil:
		return nil, errors.New("session store is required")
	case settings == nil:
		return nil, errors.New("settings reader is required")
	case cooldowns == nil:
		return nil, errors.New("cooldown checker is required")
	case moderation == nil:
		return nil, errors.New("moderation service is required")
	case messenger == nil:
		return nil, errors.New("messenger is required")
	}
	s := &Service{
		sessions:   sessions,
		settings:   settings,
		cooldowns:  cooldowns,
		moderation: moderation,
		messenger:  messenger,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = keylock.New()
	}
	return s, nil
}

// Start opens a session for user in guild and sends the intro and the first
// question. It fails with not_configured when the guild has no questions,
// blocked while a cooldown is active, already_active when a session or a
// pending application exists, and delivery_failed when the user cannot be
// messaged; in every failure case no session is created.
func (s *Service) Start(ctx context.Context, user id.UserID, guild id.GuildID) (*models.Session, error) {
	if user.IsZero() || guild.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "user and guild are required")
	}
	unlock, err := s.locks.Lock(ctx, sessionKey(user))
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := requestcontext.Now(ctx)

	st, err := s.settings.Get(ctx, guild)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settings")
	}
	if !st.HasQuestions() {
		return nil, s.rejectStart(ctx, user, guild, "not_configured",
			dErrors.New(dErrors.CodeNotConfigured, "Verification is not configured on this server."))
	}

	if err := s.cooldowns.Check(ctx, user, now); err != nil {
		if dErrors.HasCode(err, dErrors.CodeBlocked) {
			return nil, s.rejectStart(ctx, user, guild, "blocked", err)
		}
		return nil, err
	}

	_, err = s.sessions.Get(ctx, user)
	switch {
	case err == nil:
		return nil, s.rejectStart(ctx, user, guild, "already_active",
			dErrors.New(dErrors.CodeAlreadyActive, "You are already going through verification."))
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	pending, err := s.moderation.HasPending(ctx, user)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, s.rejectStart(ctx, user, guild, "pending_application",
			dErrors.New(dErrors.CodeAlreadyActive, "Your application is awaiting moderation."))
	}

	if err := s.messenger.SendDirect(ctx, user, notify.Intro); err != nil {
		return nil, s.rejectStart(ctx, user, guild, "delivery_failed",
			dErrors.Wrap(err, dErrors.CodeDeliveryFailed, notify.CannotDM))
	}

	sess := models.NewSession(user, guild, st.Questions, now)
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}
	if err := s.prompt(ctx, sess); err != nil {
		if _, derr := s.sessions.Delete(ctx, user); derr != nil {
			s.logger.ErrorContext(ctx, "failed to drop undeliverable session", "user_id", user.String(), "error", derr)
		}
		return nil, s.rejectStart(ctx, user, guild, "delivery_failed",
			dErrors.Wrap(err, dErrors.CodeDeliveryFailed, notify.CannotDM))
	}

	s.metrics.IncStarted()
	s.logger.InfoContext(ctx, "verification started",
		"user_id", user.String(),
		"guild_id", guild.String(),
		"questions", sess.Total(),
	)
	s.emit(ctx, audit.Event{
		Action:  audit.EventSessionStarted,
		UserID:  user,
		GuildID: guild,
	})
	return sess, nil
}

// AnswerResult describes what an answer did.
type AnswerResult struct {
	// Ignored is set when the user had no active session.
	Ignored bool
	// Position is the 1-indexed question just prompted, zero on completion.
	Position int
	Total    int
	// Record is the application created when the last question was answered.
	Record *moderationModels.Record
}

// Completed reports whether the answer finished the questionnaire.
func (r AnswerResult) Completed() bool {
	return r.Record != nil
}

// SubmitAnswer records text verbatim as the answer to the current question.
// Without an active session the answer is ignored. The last answer converts
// the session into a pending moderation record; if that fails the answer is
// not kept and may be resent.
func (s *Service) SubmitAnswer(ctx context.Context, user id.UserID, text string) (AnswerResult, error) {
	unlock, err := s.locks.Lock(ctx, sessionKey(user))
	if err != nil {
		return AnswerResult{}, err
	}
	defer unlock()

	sess, err := s.sessions.Get(ctx, user)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return AnswerResult{Ignored: true}, nil
		}
		return AnswerResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if !sess.Answer(text) {
		return AnswerResult{Ignored: true}, nil
	}

	if !sess.Done() {
		if err := s.sessions.Put(ctx, sess); err != nil {
			return AnswerResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session")
		}
		if err := s.prompt(ctx, sess); err != nil {
			s.logger.WarnContext(ctx, "next question not delivered",
				"user_id", user.String(),
				"index", sess.Index,
				"error", err,
			)
		}
		return AnswerResult{Position: sess.Index + 1, Total: sess.Total()}, nil
	}

	return s.complete(ctx, sess)
}

func (s *Service) complete(ctx context.Context, sess *models.Session) (AnswerResult, error) {
	st, err := s.settings.Get(ctx, sess.GuildID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return AnswerResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settings")
	}
	rec, err := s.moderation.Submit(ctx, moderationService.Application{
		UserID:    sess.UserID,
		GuildID:   sess.GuildID,
		Settings:  st,
		Questions: sess.Questions,
		Answers:   sess.Answers,
	})
	if err != nil {
		return AnswerResult{}, err
	}
	if _, err := s.sessions.Delete(ctx, sess.UserID); err != nil {
		s.logger.ErrorContext(ctx, "failed to drop completed session", "user_id", sess.UserID.String(), "error", err)
	}

	if err := s.messenger.SendDirect(ctx, sess.UserID, notify.Submitted); err != nil {
		s.logger.WarnContext(ctx, "submission acknowledgement not delivered",
			"user_id", sess.UserID.String(),
			"error", err,
		)
	}
	s.metrics.IncCompleted()
	s.logger.InfoContext(ctx, "verification completed",
		"user_id", sess.UserID.String(),
		"guild_id", sess.GuildID.String(),
		"record_id", rec.ID.String(),
	)
	return AnswerResult{Total: sess.Total(), Record: rec}, nil
}

// Abandon discards the user's session without producing a record. It is
// idempotent and reports whether a session was removed.
func (s *Service) Abandon(ctx context.Context, user id.UserID) (bool, error) {
	return s.abandon(ctx, user, func(*models.Session) bool { return true })
}

// AbandonInGuild discards the user's session only if it belongs to guild,
// e.g. when the user leaves that server.
func (s *Service) AbandonInGuild(ctx context.Context, guild id.GuildID, user id.UserID) (bool, error) {
	return s.abandon(ctx, user, func(sess *models.Session) bool { return sess.GuildID == guild })
}

func (s *Service) abandon(ctx context.Context, user id.UserID, match func(*models.Session) bool) (bool, error) {
	unlock, err := s.locks.Lock(ctx, sessionKey(user))
	if err != nil {
		return false, err
	}
	defer unlock()

	sess, err := s.sessions.Get(ctx, user)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if !match(sess) {
		return false, nil
	}
	if _, err := s.sessions.Delete(ctx, user); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete session")
	}

	s.metrics.IncAbandoned()
	s.logger.InfoContext(ctx, "verification abandoned",
		"user_id", user.String(),
		"guild_id", sess.GuildID.String(),
		"answered", sess.Index,
	)
	s.emit(ctx, audit.Event{
		Action:  audit.EventSessionAbandoned,
		UserID:  user,
		GuildID: sess.GuildID,
	})
	return true, nil
}

// Active returns the user's session, or not_found.
func (s *Service) Active(ctx context.Context, user id.UserID) (*models.Session, error) {
	sess, err := s.sessions.Get(ctx, user)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no active verification")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	return sess, nil
}

func (s *Service) prompt(ctx context.Context, sess *models.Session) error {
	pos, text, ok := sess.Current()
	if !ok {
		return nil
	}
	return s.messenger.SendDirect(ctx, sess.UserID, notify.Question(pos, sess.Total(), text))
}

func (s *Service) rejectStart(ctx context.Context, user id.UserID, guild id.GuildID, reason string, err error) error {
	s.metrics.IncStartRejected(reason)
	s.logger.InfoContext(ctx, "verification start rejected",
		"user_id", user.String(),
		"guild_id", guild.String(),
		"reason", reason,
	)
	return err
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", string(event.Action), "error", err)
	}
}

func sessionKey(user id.UserID) string {
	return "session:" + user.String()
}
