package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"warden/internal/moderation/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// PostgresStore persists records in the moderation_records table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, user id.UserID) (*models.Record, error) {
	query := `
		SELECT record_id, guild_id, questions, answers, log_channel_id, log_message_id,
		       card, status, reason, decided_by, decided_at, created_at
		FROM moderation_records
		WHERE user_id = $1
	`
	var (
		rec                               models.Record
		recordID, guildID                 string
		logChannel, logMessage, decidedBy string
		questions, answers                pq.StringArray
		card                              []byte
		status                            string
		decidedAt                         sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, user.String()).Scan(
		&recordID,
		&guildID,
		&questions,
		&answers,
		&logChannel,
		&logMessage,
		&card,
		&status,
		&rec.Reason,
		&decidedBy,
		&decidedAt,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get moderation record: %w", err)
	}

	rec.UserID = user
	if rec.ID, err = id.ParseRecordID(recordID); err != nil {
		return nil, fmt.Errorf("decode record id: %w", err)
	}
	if err := rec.GuildID.UnmarshalText([]byte(guildID)); err != nil {
		return nil, fmt.Errorf("decode guild id: %w", err)
	}
	if err := rec.LogChannelID.UnmarshalText([]byte(logChannel)); err != nil {
		return nil, fmt.Errorf("decode log channel id: %w", err)
	}
	if err := rec.LogMessageID.UnmarshalText([]byte(logMessage)); err != nil {
		return nil, fmt.Errorf("decode log message id: %w", err)
	}
	if err := rec.DecidedBy.UnmarshalText([]byte(decidedBy)); err != nil {
		return nil, fmt.Errorf("decode moderator id: %w", err)
	}
	if err := json.Unmarshal(card, &rec.Card); err != nil {
		return nil, fmt.Errorf("decode card: %w", err)
	}
	rec.Questions = []string(questions)
	rec.Answers = []string(answers)
	rec.Status = models.Status(status)
	if decidedAt.Valid {
		t := decidedAt.Time
		rec.DecidedAt = &t
	}
	return &rec, nil
}

// Save upserts the user's record, replacing any previous application.
func (s *PostgresStore) Save(ctx context.Context, rec *models.Record) error {
	card, err := json.Marshal(rec.Card)
	if err != nil {
		return fmt.Errorf("encode card: %w", err)
	}
	var decidedAt sql.NullTime
	if rec.DecidedAt != nil {
		decidedAt = sql.NullTime{Time: *rec.DecidedAt, Valid: true}
	}
	query := `
		INSERT INTO moderation_records (user_id, record_id, guild_id, questions, answers,
		                                log_channel_id, log_message_id, card, status, reason,
		                                decided_by, decided_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO UPDATE SET
			record_id = EXCLUDED.record_id,
			guild_id = EXCLUDED.guild_id,
			questions = EXCLUDED.questions,
			answers = EXCLUDED.answers,
			log_channel_id = EXCLUDED.log_channel_id,
			log_message_id = EXCLUDED.log_message_id,
			card = EXCLUDED.card,
			status = EXCLUDED.status,
			reason = EXCLUDED.reason,
			decided_by = EXCLUDED.decided_by,
			decided_at = EXCLUDED.decided_at,
			created_at = EXCLUDED.created_at
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.UserID.String(),
		rec.ID.String(),
		rec.GuildID.String(),
		pq.Array(nonNil(rec.Questions)),
		pq.Array(nonNil(rec.Answers)),
		optional(rec.LogChannelID),
		optional(rec.LogMessageID),
		card,
		string(rec.Status),
		rec.Reason,
		optional(rec.DecidedBy),
		decidedAt,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save moderation record: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

type snowflake interface {
	IsZero() bool
	String() string
}

func optional(v snowflake) string {
	if v.IsZero() {
		return ""
	}
	return v.String()
}
