package models

import (
	"time"

	id "warden/pkg/domain"
	pstrings "warden/pkg/platform/strings"
)

// QuestionDelimiter separates questions in the raw configuration text.
const QuestionDelimiter = ";"

// previewQuestions is how many questions the status view shows.
const previewQuestions = 3

// Settings is one guild's onboarding configuration. Zero ids mean unset.
type Settings struct {
	GuildID          id.GuildID   `json:"guild_id"`
	WelcomeChannelID id.ChannelID `json:"welcome_channel_id"`
	LogChannelID     id.ChannelID `json:"log_channel_id"`
	TempRoleID       id.RoleID    `json:"temp_role_id"`
	VerifiedRoleID   id.RoleID    `json:"verified_role_id"`
	AdminRoleID      id.RoleID    `json:"admin_role_id"`
	Questions        []string     `json:"questions"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// IsReady reports whether every channel and role is set and at least one
// question exists.
func (s *Settings) IsReady() bool {
	if s == nil {
		return false
	}
	return !s.WelcomeChannelID.IsZero() &&
		!s.LogChannelID.IsZero() &&
		!s.TempRoleID.IsZero() &&
		!s.VerifiedRoleID.IsZero() &&
		!s.AdminRoleID.IsZero() &&
		len(s.Questions) > 0
}

// HasQuestions reports whether a questionnaire can be run.
func (s *Settings) HasQuestions() bool {
	return s != nil && len(s.Questions) > 0
}

// Clone returns a deep copy so callers cannot alias stored slices.
func (s *Settings) Clone() *Settings {
	if s == nil {
		return nil
	}
	c := *s
	c.Questions = append([]string(nil), s.Questions...)
	return &c
}

// ParseQuestions splits raw on ";", trims each question and drops blanks.
func ParseQuestions(raw string) []string {
	return pstrings.SplitAndTrim(raw, QuestionDelimiter)
}

// Status is the administrator view of a guild's configuration.
type Status struct {
	GuildID          id.GuildID   `json:"guild_id"`
	WelcomeChannelID id.ChannelID `json:"welcome_channel_id,omitempty"`
	LogChannelID     id.ChannelID `json:"log_channel_id,omitempty"`
	TempRoleID       id.RoleID    `json:"temp_role_id,omitempty"`
	VerifiedRoleID   id.RoleID    `json:"verified_role_id,omitempty"`
	AdminRoleID      id.RoleID    `json:"admin_role_id,omitempty"`
	QuestionCount    int          `json:"question_count"`
	QuestionPreview  []string     `json:"question_preview"`
	Truncated        bool         `json:"truncated"`
	Ready            bool         `json:"ready"`
}

// StatusOf builds the status view. A nil s yields an empty, not-ready view.
func StatusOf(guild id.GuildID, s *Settings) Status {
	st := Status{GuildID: guild, QuestionPreview: []string{}}
	if s == nil {
		return st
	}
	st.WelcomeChannelID = s.WelcomeChannelID
	st.LogChannelID = s.LogChannelID
	st.TempRoleID = s.TempRoleID
	st.VerifiedRoleID = s.VerifiedRoleID
	st.AdminRoleID = s.AdminRoleID
	st.QuestionCount = len(s.Questions)
	n := min(len(s.Questions), previewQuestions)
	st.QuestionPreview = append(st.QuestionPreview, s.Questions[:n]...)
	st.Truncated = len(s.Questions) > previewQuestions
	st.Ready = s.IsReady()
	return st
}
