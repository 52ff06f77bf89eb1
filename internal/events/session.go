// Package events defines the payloads published for session lifecycle
// changes.
package events

import "time"

// SessionStarted is emitted when a new session is accepted and brought
// live.
type SessionStarted struct {
	SessionID          string    `json:"session_id"`
	TenantID           string    `json:"tenant_id"`
	UserID             string    `json:"user_id"`
	RitualID           string    `json:"ritual_id"`
	RitualName         string    `json:"ritual_name"`
	Source             string    `json:"source"`
	PhaseCount         int       `json:"phase_count"`
	PlannedDurationSec int       `json:"planned_duration_sec"`
	StartedAt          time.Time `json:"started_at"`
	Version            string    `json:"version"`
}

// SessionStateChanged tracks lifecycle transitions (active, paused,
// completed, abandoned) for optimistic UI flows.
type SessionStateChanged struct {
	SessionID  string    `json:"session_id"`
	TenantID   string    `json:"tenant_id"`
	UserID     string    `json:"user_id"`
	State      string    `json:"state"`
	OccurredAt time.Time `json:"occurred_at"`
	Reason     string    `json:"reason,omitempty"`
}

// SessionCompleted is emitted once when a session reaches the terminal
// state, carrying the wall-clock duration actually spent.
type SessionCompleted struct {
	SessionID          string    `json:"session_id"`
	TenantID           string    `json:"tenant_id"`
	UserID             string    `json:"user_id"`
	RitualID           string    `json:"ritual_id"`
	PlannedDurationSec int       `json:"planned_duration_sec"`
	ActualDurationSec  int       `json:"actual_duration_sec"`
	CompletedAt        time.Time `json:"completed_at"`
	Version            string    `json:"version"`
}
