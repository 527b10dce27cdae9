package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "warden/pkg/domain-errors"
)

func TestDecision_Validate(t *testing.T) {
	tests := []struct {
		name    string
		d       Decision
		wantErr bool
	}{
		{"accept", Decision{Kind: KindAccept, ModeratorID: 1}, false},
		{"deny without reason", Decision{Kind: KindDeny, ModeratorID: 1}, false},
		{"deny with reason requires text", Decision{Kind: KindDenyWithReason, ModeratorID: 1}, true},
		{"deny with reason", Decision{Kind: KindDenyWithReason, ModeratorID: 1, Reason: "spam"}, false},
		{"unknown kind", Decision{Kind: "ban", ModeratorID: 1}, true},
		{"missing moderator", Decision{Kind: KindKick}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if tt.wantErr {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRecord_ApplyOnlyOnce(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := &Record{Status: StatusPending}

	require.NoError(t, r.Apply(Decision{Kind: KindDeny, ModeratorID: 9}, "", at))
	assert.Equal(t, StatusDenied, r.Status)
	assert.Equal(t, at, *r.DecidedAt)

	err := r.Apply(Decision{Kind: KindAccept, ModeratorID: 10}, "", at.Add(time.Hour))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyDecided))
	assert.Equal(t, StatusDenied, r.Status)
	assert.EqualValues(t, 9, r.DecidedBy)
}

func TestKind_AppliesCooldown(t *testing.T) {
	assert.False(t, KindAccept.AppliesCooldown())
	assert.True(t, KindDeny.AppliesCooldown())
	assert.True(t, KindDenyWithReason.AppliesCooldown())
	assert.True(t, KindKick.AppliesCooldown())
	assert.Equal(t, StatusKicked, KindKick.Status())
}

func TestCard_SetStatusKeepsSingleField(t *testing.T) {
	c := Card{Fields: []CardField{{Name: "1. Name?", Value: "Alice"}}}
	c.SetStatus("first")
	c.SetStatus("second")

	assert.Len(t, c.Fields, 2)
	v, ok := c.StatusField()
	assert.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestRecord_CloneIsDeep(t *testing.T) {
	at := time.Now()
	r := &Record{Answers: []string{"a"}, Card: Card{Fields: []CardField{{Name: "x"}}}, DecidedAt: &at}
	c := r.Clone()
	c.Answers[0] = "b"
	c.Card.Fields[0].Name = "y"
	*c.DecidedAt = at.Add(time.Hour)

	assert.Equal(t, "a", r.Answers[0])
	assert.Equal(t, "x", r.Card.Fields[0].Name)
	assert.Equal(t, at, *r.DecidedAt)
}
