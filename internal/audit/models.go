package audit

import (
	"context"
	"time"

	id "warden/pkg/domain"
)

// EventType names a lifecycle transition worth keeping.
type EventType string

const (
	EventSettingsUpdated       EventType = "settings_updated"
	EventSessionStarted        EventType = "session_started"
	EventSessionAbandoned      EventType = "session_abandoned"
	EventApplicationSubmitted  EventType = "application_submitted"
	EventApplicationSuperseded EventType = "application_superseded"
	EventDecisionAccepted      EventType = "decision_accepted"
	EventDecisionDenied        EventType = "decision_denied"
	EventDecisionDeniedReason  EventType = "decision_denied_with_reason"
	EventDecisionKicked        EventType = "decision_kicked"
	EventCooldownExpired       EventType = "cooldown_expired"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Action    EventType  `json:"action"`
	UserID    id.UserID  `json:"user_id,omitempty"`
	GuildID   id.GuildID `json:"guild_id,omitempty"`
	// ActorID is the moderator or administrator acting on UserID, if any.
	ActorID   id.UserID   `json:"actor_id,omitempty"`
	RecordID  id.RecordID `json:"record_id,omitempty"`
	Status    string      `json:"status,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Store is an append-only sink for events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister reads back a user's events.
type Lister interface {
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
