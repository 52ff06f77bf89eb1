package sequence

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSequence is returned when a sequence is empty or malformed.
	ErrInvalidSequence = errors.New("invalid sequence")
	// ErrInvalidIndex is returned when a jump targets an unseen or
	// out-of-range index.
	ErrInvalidIndex = errors.New("invalid index")
	// ErrAlreadyComplete is returned for operations attempted after the
	// terminal state was reached.
	ErrAlreadyComplete = errors.New("sequence already complete")
	// ErrNotStarted is returned for control operations on an idle controller.
	ErrNotStarted = errors.New("sequence not started")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("sequence already started")
)

// Sequence is an ordered, immutable list of activities. Position tracking
// belongs to the Controller; a Sequence itself never changes after New.
type Sequence struct {
	id         string
	activities []Activity
}

// New validates the activity list and builds a Sequence. The list must be
// non-empty, every activity needs a unique non-blank id, and durations must
// be non-negative.
func New(id string, activities []Activity) (*Sequence, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: missing sequence id", ErrInvalidSequence)
	}
	if len(activities) == 0 {
		return nil, fmt.Errorf("%w: no activities", ErrInvalidSequence)
	}

	seen := make(map[string]struct{}, len(activities))
	for i, activity := range activities {
		if strings.TrimSpace(activity.ID) == "" {
			return nil, fmt.Errorf("%w: activity %d has no id", ErrInvalidSequence, i)
		}
		if activity.DurationSec < 0 {
			return nil, fmt.Errorf("%w: activity %q has negative duration", ErrInvalidSequence, activity.ID)
		}
		if _, dup := seen[activity.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate activity id %q", ErrInvalidSequence, activity.ID)
		}
		seen[activity.ID] = struct{}{}
	}

	owned := make([]Activity, len(activities))
	copy(owned, activities)
	return &Sequence{id: id, activities: owned}, nil
}

// ID returns the sequence identifier.
func (s *Sequence) ID() string { return s.id }

// Len returns the number of activities.
func (s *Sequence) Len() int { return len(s.activities) }

// At returns the activity at index i. The index must be in [0, Len).
func (s *Sequence) At(i int) Activity { return s.activities[i] }

// Activities returns a copy of the activity list.
func (s *Sequence) Activities() []Activity {
	out := make([]Activity, len(s.activities))
	copy(out, s.activities)
	return out
}

// TotalDurationSec is the sum of all member durations.
func (s *Sequence) TotalDurationSec() int {
	total := 0
	for _, activity := range s.activities {
		total += activity.DurationSec
	}
	return total
}
