package store

import (
	"context"

	"warden/internal/platform/snapshot"
	"warden/internal/verification/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// InMemory holds active sessions. Sessions are transient and never written
// to disk; a restart drops questionnaires in progress.
type InMemory struct {
	table *snapshot.Table[id.UserID, models.Session]
}

func NewInMemory() *InMemory {
	return &InMemory{table: snapshot.NewTable[id.UserID, models.Session]()}
}

func (s *InMemory) Get(_ context.Context, user id.UserID) (*models.Session, error) {
	sess, ok := s.table.Get(user)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *InMemory) Put(_ context.Context, sess *models.Session) error {
	return s.table.Put(sess.UserID, *sess.Clone())
}

// Delete removes the user's session and reports whether one existed.
func (s *InMemory) Delete(_ context.Context, user id.UserID) (bool, error) {
	return s.table.Delete(user)
}

// Len returns the number of active sessions.
func (s *InMemory) Len() int {
	return s.table.Len()
}
