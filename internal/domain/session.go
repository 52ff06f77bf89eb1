package domain

import "time"

// SessionState represents the lifecycle status of a stored session.
type SessionState string

const (
	SessionStateActive    SessionState = "active"
	SessionStatePaused    SessionState = "paused"
	SessionStateCompleted SessionState = "completed"
	SessionStateAbandoned SessionState = "abandoned"
)

// SessionAggregate is the session record stored in Postgres and replayed
// to downstream consumers. Phase-level cursor and remaining time live only
// in the engine while the session is in flight.
type SessionAggregate struct {
	ID                 string
	TenantID           string
	UserID             string
	RitualID           string
	RitualName         string
	Source             string
	PhaseCount         int
	PlannedDurationSec int
	ActualDurationSec  int
	State              SessionState
	StartedAt          time.Time
	CompletedAt        *time.Time
	Version            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Cursor models the pagination token for session history.
type Cursor struct {
	StartedAt time.Time
	ID        string
}

// SessionSummary describes aggregate stats for a user's sessions.
type SessionSummary struct {
	Total                 int
	Active                int
	Completed             int
	Abandoned             int
	AveragePlannedMinutes float64
	AverageActualMinutes  float64
	CompletionRate        float64
	LastSessionAt         *time.Time
}
