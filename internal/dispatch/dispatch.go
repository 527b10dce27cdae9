// Package dispatch routes typed inbound commands to the workflow services.
// Each command runs inside its own span.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	moderationModels "warden/internal/moderation/models"
	settingsModels "warden/internal/settings/models"
	verificationModels "warden/internal/verification/models"
	verificationService "warden/internal/verification/service"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// TracerName identifies spans emitted by the dispatcher.
const TracerName = "warden/dispatch"

type Settings interface {
	SetChannels(ctx context.Context, guild id.GuildID, welcome, logCh id.ChannelID) (*settingsModels.Settings, error)
	SetRoles(ctx context.Context, guild id.GuildID, temp, verified, admin id.RoleID) (*settingsModels.Settings, error)
	SetQuestions(ctx context.Context, guild id.GuildID, raw string) (*settingsModels.Settings, error)
	Status(ctx context.Context, guild id.GuildID) (settingsModels.Status, error)
}

type Verification interface {
	Start(ctx context.Context, user id.UserID, guild id.GuildID) (*verificationModels.Session, error)
	SubmitAnswer(ctx context.Context, user id.UserID, text string) (verificationService.AnswerResult, error)
	AbandonInGuild(ctx context.Context, guild id.GuildID, user id.UserID) (bool, error)
}

type Moderation interface {
	Decide(ctx context.Context, user id.UserID, d moderationModels.Decision) (*moderationModels.Record, error)
	Get(ctx context.Context, user id.UserID) (*moderationModels.Record, error)
}

// HandlerFunc executes one command kind.
type HandlerFunc func(ctx context.Context, cmd Command) (any, error)

// Dispatcher is the command table.
type Dispatcher struct {
	handlers map[Kind]HandlerFunc
	tracer   trace.Tracer
	logger   *slog.Logger
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithTracer overrides the global tracer, mainly for tests.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// New builds the dispatch table for the three workflow services.
func New(settings Settings, verification Verification, moderation Moderation, opts ...Option) (*Dispatcher, error) {
	if settings == nil {
		return nil, errors.New("settings service is required")
	}
	if verification == nil {
		return nil, errors.New("verification service is required")
	}
	if moderation == nil {
		return nil, errors.New("moderation service is required")
	}
	d := &Dispatcher{
		handlers: make(map[Kind]HandlerFunc),
		tracer:   otel.Tracer(TracerName),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	handle(d, KindStartVerification, func(ctx context.Context, c StartVerification) (any, error) {
		return verification.Start(ctx, c.UserID, c.GuildID)
	})
	handle(d, KindSubmitAnswer, func(ctx context.Context, c SubmitAnswer) (any, error) {
		return verification.SubmitAnswer(ctx, c.UserID, c.Text)
	})
	handle(d, KindMemberLeft, func(ctx context.Context, c MemberLeft) (any, error) {
		return verification.AbandonInGuild(ctx, c.GuildID, c.UserID)
	})
	handle(d, KindDecide, func(ctx context.Context, c Decide) (any, error) {
		return moderation.Decide(ctx, c.UserID, c.Decision)
	})
	handle(d, KindGetRecord, func(ctx context.Context, c GetRecord) (any, error) {
		return moderation.Get(ctx, c.UserID)
	})
	handle(d, KindSetChannels, func(ctx context.Context, c SetChannels) (any, error) {
		return settings.SetChannels(ctx, c.GuildID, c.WelcomeID, c.LogID)
	})
	handle(d, KindSetRoles, func(ctx context.Context, c SetRoles) (any, error) {
		return settings.SetRoles(ctx, c.GuildID, c.TempID, c.VerifiedID, c.AdminID)
	})
	handle(d, KindSetQuestions, func(ctx context.Context, c SetQuestions) (any, error) {
		return settings.SetQuestions(ctx, c.GuildID, c.Raw)
	})
	handle(d, KindGetSettings, func(ctx context.Context, c GetSettings) (any, error) {
		return settings.Status(ctx, c.GuildID)
	})
	return d, nil
}

func handle[C Command](d *Dispatcher, kind Kind, fn func(context.Context, C) (any, error)) {
	d.handlers[kind] = func(ctx context.Context, cmd Command) (any, error) {
		c, ok := cmd.(C)
		if !ok {
			return nil, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("command %T registered as %s", cmd, kind))
		}
		return fn(ctx, c)
	}
}

// Dispatch runs cmd through its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (any, error) {
	if cmd == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "command is required")
	}
	kind := cmd.Kind()
	h, ok := d.handlers[kind]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInternal, "no handler for "+string(kind))
	}

	ctx, span := d.tracer.Start(ctx, "dispatch."+string(kind),
		trace.WithAttributes(attribute.String("warden.command", string(kind))),
	)
	defer span.End()

	res, err := h(ctx, cmd)
	if err != nil {
		code := dErrors.CodeOf(err)
		span.SetAttributes(attribute.String("warden.error_code", string(code)))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		d.logger.DebugContext(ctx, "command rejected", "command", string(kind), "code", string(code))
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// Runner is what inbound transports depend on.
type Runner interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

// Do dispatches cmd and asserts the result type.
func Do[R any](ctx context.Context, d Runner, cmd Command) (R, error) {
	var zero R
	res, err := d.Dispatch(ctx, cmd)
	if err != nil {
		return zero, err
	}
	out, ok := res.(R)
	if !ok {
		return zero, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("unexpected result %T for %s", res, cmd.Kind()))
	}
	return out, nil
}
