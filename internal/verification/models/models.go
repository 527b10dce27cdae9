package models

import (
	"time"

	id "warden/pkg/domain"
)

// Session is one user's questionnaire in progress. The question list is
// captured at start so later configuration changes cannot shift the index.
//
// Invariant: len(Answers) == Index and 0 <= Index <= len(Questions).
type Session struct {
	UserID    id.UserID  `json:"user_id"`
	GuildID   id.GuildID `json:"guild_id"`
	Questions []string   `json:"questions"`
	Answers   []string   `json:"answers"`
	Index     int        `json:"index"`
	StartedAt time.Time  `json:"started_at"`
}

func NewSession(user id.UserID, guild id.GuildID, questions []string, now time.Time) *Session {
	return &Session{
		UserID:    user,
		GuildID:   guild,
		Questions: append([]string(nil), questions...),
		Answers:   []string{},
		StartedAt: now,
	}
}

// Total is the number of questions in the session.
func (s *Session) Total() int {
	return len(s.Questions)
}

// Done reports whether every question has an answer.
func (s *Session) Done() bool {
	return s.Index >= len(s.Questions)
}

// Current returns the 1-indexed position and text of the next unanswered
// question. ok is false once the session is done.
func (s *Session) Current() (position int, text string, ok bool) {
	if s.Done() {
		return 0, "", false
	}
	return s.Index + 1, s.Questions[s.Index], true
}

// Answer records text verbatim for the current question and advances.
// Answers past the last question are dropped.
func (s *Session) Answer(text string) bool {
	if s.Done() {
		return false
	}
	s.Answers = append(s.Answers, text)
	s.Index++
	return true
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Questions = append([]string(nil), s.Questions...)
	c.Answers = append([]string{}, s.Answers...)
	return &c
}
