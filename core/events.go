package core

import "time"

// EventType names a domain event. It doubles as the topic suffix.
type EventType string

const (
	EventChallengeIssued EventType = "challenge.issued"
	EventChallengeFailed EventType = "challenge.failed"
	EventSessionIssued   EventType = "session.issued"
	EventSessionRevoked  EventType = "session.revoked"
	EventLoginFailed     EventType = "login.failed"
)

// Event is published after state changes so other services can react.
type Event struct {
	Type        EventType `json:"type"`
	PrincipalID string    `json:"principal_id,omitempty"`
	ChallengeID string    `json:"challenge_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	Role        Role      `json:"role,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
