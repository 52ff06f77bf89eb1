// Package sequence implements the timed multi-phase engine behind guided
// Restorae rituals: an ordered list of activities, a cursor, a per-phase
// countdown, and a small lifecycle state machine driving them.
package sequence

// ActivityType classifies a playable unit within a sequence.
type ActivityType string

const (
	ActivityBreathing ActivityType = "breathing"
	ActivityGrounding ActivityType = "grounding"
	ActivityReset     ActivityType = "reset"
	ActivityFocus     ActivityType = "focus"
	ActivityJournal   ActivityType = "journal"
	ActivityOther     ActivityType = "other"
)

// PhaseRole tags SOS preset phases with their position in the protocol.
// Regular program activities carry no role.
type PhaseRole string

const (
	RoleInterrupt PhaseRole = "interrupt"
	RoleGround    PhaseRole = "ground"
	RoleReassure  PhaseRole = "reassure"
	RoleNextStep  PhaseRole = "next-step"
)

// BreathingPattern holds breath timing in whole seconds.
type BreathingPattern struct {
	Inhale int `json:"inhale" yaml:"inhale"`
	Hold1  int `json:"hold1" yaml:"hold1"`
	Exhale int `json:"exhale" yaml:"exhale"`
	Hold2  int `json:"hold2" yaml:"hold2"`
	Cycles int `json:"cycles" yaml:"cycles"`
}

// Activity is one playable unit of a sequence. The type-specific payload
// fields (Breathing, Steps, Prompt) are populated for their matching type
// and ignored otherwise.
type Activity struct {
	ID          string            `json:"id"`
	Type        ActivityType      `json:"type"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	DurationSec int               `json:"duration_sec"`
	Tone        string            `json:"tone,omitempty"`
	Role        PhaseRole         `json:"role,omitempty"`
	Breathing   *BreathingPattern `json:"breathing,omitempty"`
	Steps       []string          `json:"steps,omitempty"`
	Prompt      string            `json:"prompt,omitempty"`
}
