package store

import (
	"context"
	"database/sql"
	"encoding"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"warden/internal/settings/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// PostgresStore persists settings in the guild_settings table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, guild id.GuildID) (*models.Settings, error) {
	query := `
		SELECT guild_id, welcome_channel_id, log_channel_id, temp_role_id,
		       verified_role_id, admin_role_id, questions, updated_at
		FROM guild_settings
		WHERE guild_id = $1
	`
	var (
		st                                models.Settings
		guildID, welcome, logCh           string
		tempRole, verifiedRole, adminRole string
		questions                         pq.StringArray
	)
	err := s.db.QueryRowContext(ctx, query, guild.String()).Scan(
		&guildID,
		&welcome,
		&logCh,
		&tempRole,
		&verifiedRole,
		&adminRole,
		&questions,
		&st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get guild settings: %w", err)
	}
	for _, f := range []struct {
		dst encoding.TextUnmarshaler
		src string
	}{
		{&st.GuildID, guildID},
		{&st.WelcomeChannelID, welcome},
		{&st.LogChannelID, logCh},
		{&st.TempRoleID, tempRole},
		{&st.VerifiedRoleID, verifiedRole},
		{&st.AdminRoleID, adminRole},
	} {
		if err := f.dst.UnmarshalText([]byte(f.src)); err != nil {
			return nil, fmt.Errorf("decode guild settings: %w", err)
		}
	}
	st.Questions = []string(questions)
	return &st, nil
}

func (s *PostgresStore) Save(ctx context.Context, st *models.Settings) error {
	query := `
		INSERT INTO guild_settings (guild_id, welcome_channel_id, log_channel_id, temp_role_id,
		                            verified_role_id, admin_role_id, questions, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (guild_id) DO UPDATE SET
			welcome_channel_id = EXCLUDED.welcome_channel_id,
			log_channel_id = EXCLUDED.log_channel_id,
			temp_role_id = EXCLUDED.temp_role_id,
			verified_role_id = EXCLUDED.verified_role_id,
			admin_role_id = EXCLUDED.admin_role_id,
			questions = EXCLUDED.questions,
			updated_at = EXCLUDED.updated_at
	`
	questions := st.Questions
	if questions == nil {
		questions = []string{}
	}
	_, err := s.db.ExecContext(ctx, query,
		st.GuildID.String(),
		optional(st.WelcomeChannelID),
		optional(st.LogChannelID),
		optional(st.TempRoleID),
		optional(st.VerifiedRoleID),
		optional(st.AdminRoleID),
		pq.Array(questions),
		st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save guild settings: %w", err)
	}
	return nil
}

type snowflake interface {
	IsZero() bool
	String() string
}

// optional stores unset ids as empty strings.
func optional(v snowflake) string {
	if v.IsZero() {
		return ""
	}
	return v.String()
}
