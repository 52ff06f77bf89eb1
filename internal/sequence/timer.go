package sequence

// PhaseTimer counts the active phase down in whole seconds. It is not safe
// for concurrent use; the Controller serialises access.
type PhaseTimer struct {
	durationSec  int
	remainingSec int
}

// NewPhaseTimer starts a countdown of durationSec whole seconds. Negative
// durations are treated as zero.
func NewPhaseTimer(durationSec int) *PhaseTimer {
	if durationSec < 0 {
		durationSec = 0
	}
	return &PhaseTimer{durationSec: durationSec, remainingSec: durationSec}
}

// Tick consumes one second and reports whether the phase has expired. A
// zero-duration phase expires on the first tick; remaining never goes
// negative.
func (t *PhaseTimer) Tick() bool {
	if t.remainingSec > 0 {
		t.remainingSec--
	}
	return t.remainingSec == 0
}

// Remaining returns the seconds left in the current phase.
func (t *PhaseTimer) Remaining() int { return t.remainingSec }

// Reset rewinds the timer for a new phase duration.
func (t *PhaseTimer) Reset(durationSec int) {
	if durationSec < 0 {
		durationSec = 0
	}
	t.durationSec = durationSec
	t.remainingSec = durationSec
}
