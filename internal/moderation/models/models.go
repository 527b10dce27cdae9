package models

import (
	"time"

	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
)

// Status is the lifecycle tag of a moderation record. A record starts
// pending and receives exactly one terminal status.
type Status string

const (
	StatusPending          Status = "pending"
	StatusAccepted         Status = "accepted"
	StatusDenied           Status = "denied"
	StatusDeniedWithReason Status = "denied_with_reason"
	StatusKicked           Status = "kicked"
)

func (s Status) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusDenied, StatusDeniedWithReason, StatusKicked:
		return true
	}
	return false
}

// Kind is a moderator decision.
type Kind string

const (
	KindAccept         Kind = "accept"
	KindDeny           Kind = "deny"
	KindDenyWithReason Kind = "deny_with_reason"
	KindKick           Kind = "kick"
)

// ParseKind accepts the wire names of the four decisions.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindAccept, KindDeny, KindDenyWithReason, KindKick:
		return k, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown decision kind: "+s)
}

// Status returns the terminal status a successful decision of kind k sets.
func (k Kind) Status() Status {
	switch k {
	case KindAccept:
		return StatusAccepted
	case KindDeny:
		return StatusDenied
	case KindDenyWithReason:
		return StatusDeniedWithReason
	case KindKick:
		return StatusKicked
	}
	return ""
}

// AppliesCooldown reports whether the decision blocks re-application.
func (k Kind) AppliesCooldown() bool {
	return k == KindDeny || k == KindDenyWithReason || k == KindKick
}

// Decision is a moderator action on one user's record.
type Decision struct {
	Kind        Kind
	ModeratorID id.UserID
	Reason      string
}

func (d Decision) Validate() error {
	if _, err := ParseKind(string(d.Kind)); err != nil {
		return err
	}
	if d.ModeratorID.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "moderator id is required")
	}
	if d.Kind == KindDenyWithReason && d.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required for deny_with_reason")
	}
	return nil
}

// Record is a submitted application. It is keyed by user; a new submission
// replaces a decided record for the same user.
type Record struct {
	ID           id.RecordID  `json:"id"`
	UserID       id.UserID    `json:"user_id"`
	GuildID      id.GuildID   `json:"guild_id"`
	Questions    []string     `json:"questions"`
	Answers      []string     `json:"answers"`
	LogChannelID id.ChannelID `json:"log_channel_id"`
	LogMessageID id.MessageID `json:"log_message_id"`
	Card         Card         `json:"card"`
	Status       Status       `json:"status"`
	Reason       string       `json:"reason,omitempty"`
	DecidedBy    id.UserID    `json:"decided_by"`
	DecidedAt    *time.Time   `json:"decided_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (r *Record) IsPending() bool {
	return r != nil && r.Status == StatusPending
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Questions = append([]string(nil), r.Questions...)
	c.Answers = append([]string(nil), r.Answers...)
	c.Card = r.Card.Clone()
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		c.DecidedAt = &t
	}
	return &c
}

// Apply moves a pending record to the terminal status of d.
func (r *Record) Apply(d Decision, reason string, at time.Time) error {
	if !r.IsPending() {
		return dErrors.New(dErrors.CodeAlreadyDecided, "application was already "+string(r.Status))
	}
	r.Status = d.Kind.Status()
	r.Reason = reason
	r.DecidedBy = d.ModeratorID
	r.DecidedAt = &at
	return nil
}

// StatusFieldName names the card field every decision adds.
const StatusFieldName = "Status"

// Card is the application rendered into the log channel.
type Card struct {
	Content   string      `json:"content"`
	Title     string      `json:"title"`
	Color     int         `json:"color"`
	Fields    []CardField `json:"fields"`
	Footer    string      `json:"footer"`
	Timestamp time.Time   `json:"timestamp"`
}

type CardField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

func (c Card) Clone() Card {
	c.Fields = append([]CardField(nil), c.Fields...)
	return c
}

// SetStatus sets the single status field, replacing one if present.
func (c *Card) SetStatus(value string) {
	for i := range c.Fields {
		if c.Fields[i].Name == StatusFieldName {
			c.Fields[i].Value = value
			return
		}
	}
	c.Fields = append(c.Fields, CardField{Name: StatusFieldName, Value: value})
}

// StatusField returns the status field value, if any.
func (c Card) StatusField() (string, bool) {
	for _, f := range c.Fields {
		if f.Name == StatusFieldName {
			return f.Value, true
		}
	}
	return "", false
}
