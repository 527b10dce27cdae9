package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"warden/internal/cooldown/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// PostgresStore persists the ledger in the cooldowns table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, user id.UserID) (*models.Entry, error) {
	entry := models.Entry{UserID: user}
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM cooldowns WHERE user_id = $1`,
		user.String(),
	).Scan(&entry.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get cooldown: %w", err)
	}
	return &entry, nil
}

func (s *PostgresStore) Put(ctx context.Context, entry models.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cooldowns (user_id, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`, entry.UserID.String(), entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("put cooldown: %w", err)
	}
	return nil
}

// DeleteExpired removes expired rows in one statement and returns their users.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) ([]id.UserID, error) {
	rows, err := s.db.QueryContext(ctx,
		`DELETE FROM cooldowns WHERE expires_at <= $1 RETURNING user_id`, now)
	if err != nil {
		return nil, fmt.Errorf("delete expired cooldowns: %w", err)
	}
	defer rows.Close()

	var removed []id.UserID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return removed, fmt.Errorf("scan expired cooldown: %w", err)
		}
		user, err := id.ParseUserID(raw)
		if err != nil {
			continue
		}
		removed = append(removed, user)
	}
	return removed, rows.Err()
}
