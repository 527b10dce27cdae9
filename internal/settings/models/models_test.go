package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "warden/pkg/domain"
)

func readySettings() *Settings {
	return &Settings{
		GuildID:          1,
		WelcomeChannelID: 10,
		LogChannelID:     11,
		TempRoleID:       20,
		VerifiedRoleID:   21,
		AdminRoleID:      22,
		Questions:        []string{"Name?", "Age?"},
	}
}

func TestParseQuestions(t *testing.T) {
	t.Run("drops empty segment and trims whitespace", func(t *testing.T) {
		assert.Equal(t, []string{"A?", "B?"}, ParseQuestions("A?; ;B?"))
	})

	t.Run("blank text yields no questions", func(t *testing.T) {
		assert.Empty(t, ParseQuestions("  ;  "))
	})
}

func TestIsReady(t *testing.T) {
	assert.True(t, readySettings().IsReady())
	assert.False(t, (*Settings)(nil).IsReady())

	missing := map[string]func(*Settings){
		"welcome channel": func(s *Settings) { s.WelcomeChannelID = 0 },
		"log channel":     func(s *Settings) { s.LogChannelID = 0 },
		"temp role":       func(s *Settings) { s.TempRoleID = 0 },
		"verified role":   func(s *Settings) { s.VerifiedRoleID = 0 },
		"admin role":      func(s *Settings) { s.AdminRoleID = 0 },
		"questions":       func(s *Settings) { s.Questions = nil },
	}
	for name, clear := range missing {
		t.Run("not ready without "+name, func(t *testing.T) {
			s := readySettings()
			clear(s)
			assert.False(t, s.IsReady())
		})
	}
}

func TestClone(t *testing.T) {
	s := readySettings()
	c := s.Clone()
	c.Questions[0] = "changed"
	assert.Equal(t, "Name?", s.Questions[0])
}

func TestStatusOf(t *testing.T) {
	t.Run("absent settings", func(t *testing.T) {
		st := StatusOf(id.GuildID(5), nil)
		assert.Equal(t, id.GuildID(5), st.GuildID)
		assert.False(t, st.Ready)
		assert.Empty(t, st.QuestionPreview)
	})

	t.Run("previews first three questions", func(t *testing.T) {
		s := readySettings()
		s.Questions = []string{"q1", "q2", "q3", "q4"}
		st := StatusOf(s.GuildID, s)
		assert.Equal(t, 4, st.QuestionCount)
		assert.Equal(t, []string{"q1", "q2", "q3"}, st.QuestionPreview)
		assert.True(t, st.Truncated)
		assert.True(t, st.Ready)
	})
}
