package service

import (
	"context"
	"errors"
	"log/slog"

	"warden/internal/audit"
	"warden/internal/platform/metrics"
	"warden/internal/settings/models"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/keylock"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

// Store is pure I/O for guild settings.
type Store interface {
	Get(ctx context.Context, guild id.GuildID) (*models.Settings, error)
	Save(ctx context.Context, settings *models.Settings) error
}

// PanelPublisher posts the "start verification" panel into a channel.
type PanelPublisher interface {
	PublishPanel(ctx context.Context, channel id.ChannelID) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the upsert rules for guild settings. Every setter is a
// read-modify-write serialized per guild, so concurrent setters never lose
// each other's fields.
type Service struct {
	store          Store
	locks          *keylock.Map
	panels         PanelPublisher
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

func WithPanelPublisher(p PanelPublisher) Option {
	return func(s *Service) {
		s.panels = p
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

// WithLocks shares a lock map with other services.
func WithLocks(locks *keylock.Map) Option {
	return func(s *Service) {
		s.locks = locks
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("settings store is required")
	}
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = keylock.New()
	}
	return s, nil
}

// SetChannels records the welcome and log channels, then publishes the start
// panel into the welcome channel. A panel failure is logged only.
func (s *Service) SetChannels(ctx context.Context, guild id.GuildID, welcome, logCh id.ChannelID) (*models.Settings, error) {
	if welcome.IsZero() || logCh.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "welcome and log channels are required")
	}
	st, err := s.update(ctx, guild, "channels", func(st *models.Settings) {
		st.WelcomeChannelID = welcome
		st.LogChannelID = logCh
	})
	if err != nil {
		return nil, err
	}

	if s.panels != nil {
		if err := s.panels.PublishPanel(ctx, welcome); err != nil {
			s.logger.WarnContext(ctx, "verification panel not published",
				"guild_id", guild.String(),
				"channel_id", welcome.String(),
				"error", err,
			)
		}
	}
	return st, nil
}

func (s *Service) SetRoles(ctx context.Context, guild id.GuildID, temp, verified, admin id.RoleID) (*models.Settings, error) {
	if temp.IsZero() || verified.IsZero() || admin.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "temporary, verified and admin roles are required")
	}
	return s.update(ctx, guild, "roles", func(st *models.Settings) {
		st.TempRoleID = temp
		st.VerifiedRoleID = verified
		st.AdminRoleID = admin
	})
}

// SetQuestions replaces the whole question list with the parsed raw text.
// Blank text clears the list and leaves the guild not ready.
func (s *Service) SetQuestions(ctx context.Context, guild id.GuildID, raw string) (*models.Settings, error) {
	questions := models.ParseQuestions(raw)
	if len(questions) == 0 {
		s.logger.WarnContext(ctx, "question list cleared", "guild_id", guild.String())
	}
	return s.update(ctx, guild, "questions", func(st *models.Settings) {
		st.Questions = questions
	})
}

// Get returns the guild's settings. Absent settings yield a not_found error
// that still matches sentinel.ErrNotFound.
func (s *Service) Get(ctx context.Context, guild id.GuildID) (*models.Settings, error) {
	st, err := s.store.Get(ctx, guild)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "guild has no settings")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settings")
	}
	return st, nil
}

// Status returns the administrator view. Absent settings yield an empty view.
func (s *Service) Status(ctx context.Context, guild id.GuildID) (models.Status, error) {
	st, err := s.store.Get(ctx, guild)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return models.Status{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settings")
	}
	return models.StatusOf(guild, st), nil
}

func (s *Service) update(ctx context.Context, guild id.GuildID, field string, mutate func(*models.Settings)) (*models.Settings, error) {
	if guild.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "guild id is required")
	}
	unlock, err := s.locks.Lock(ctx, "guild:"+guild.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	st, err := s.store.Get(ctx, guild)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		st = &models.Settings{GuildID: guild}
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settings")
	}

	mutate(st)
	st.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Save(ctx, st); err != nil {
		if !dErrors.HasCode(err, dErrors.CodePersistenceFailed) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save settings")
		}
		s.logger.ErrorContext(ctx, "settings snapshot write failed",
			"guild_id", guild.String(),
			"error", err,
		)
		s.metrics.IncPersistenceFailure("settings")
	}

	s.logger.InfoContext(ctx, "settings updated",
		"guild_id", guild.String(),
		"field", field,
		"ready", st.IsReady(),
	)
	s.emit(ctx, audit.Event{
		Action:  audit.EventSettingsUpdated,
		GuildID: guild,
		Status:  field,
	})
	return st, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", string(event.Action), "error", err)
	}
}
