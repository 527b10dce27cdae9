package gateway

import (
	"context"
	"log/slog"
	"sync/atomic"

	"warden/internal/moderation/models"
	id "warden/pkg/domain"
)

// LogOnly implements the outbound ports by logging each call. It lets the
// service run without a gateway during development.
type LogOnly struct {
	logger *slog.Logger
	seq    atomic.Uint64
}

func NewLogOnly(logger *slog.Logger) *LogOnly {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogOnly{logger: logger}
}

func (l *LogOnly) SendDirect(ctx context.Context, user id.UserID, text string) error {
	l.logger.InfoContext(ctx, "gateway: direct message", "user_id", user.String(), "text", text)
	return nil
}

// PostCard returns a locally generated message id.
func (l *LogOnly) PostCard(ctx context.Context, channel id.ChannelID, card models.Card) (id.MessageID, error) {
	msg := id.MessageID(l.seq.Add(1))
	l.logger.InfoContext(ctx, "gateway: post card",
		"channel_id", channel.String(),
		"message_id", msg.String(),
		"title", card.Title,
	)
	return msg, nil
}

func (l *LogOnly) EditCard(ctx context.Context, channel id.ChannelID, message id.MessageID, card models.Card) error {
	status, _ := card.StatusField()
	l.logger.InfoContext(ctx, "gateway: edit card",
		"channel_id", channel.String(),
		"message_id", message.String(),
		"status", status,
	)
	return nil
}

func (l *LogOnly) PublishPanel(ctx context.Context, channel id.ChannelID) error {
	l.logger.InfoContext(ctx, "gateway: publish panel", "channel_id", channel.String())
	return nil
}

func (l *LogOnly) AddRole(ctx context.Context, guild id.GuildID, user id.UserID, role id.RoleID) error {
	l.logger.InfoContext(ctx, "gateway: add role",
		"guild_id", guild.String(), "user_id", user.String(), "role_id", role.String())
	return nil
}

func (l *LogOnly) RemoveRole(ctx context.Context, guild id.GuildID, user id.UserID, role id.RoleID) error {
	l.logger.InfoContext(ctx, "gateway: remove role",
		"guild_id", guild.String(), "user_id", user.String(), "role_id", role.String())
	return nil
}

func (l *LogOnly) RemoveMember(ctx context.Context, guild id.GuildID, user id.UserID, reason string) error {
	l.logger.InfoContext(ctx, "gateway: remove member",
		"guild_id", guild.String(), "user_id", user.String(), "reason", reason)
	return nil
}
