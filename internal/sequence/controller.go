package sequence

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State identifies the controller lifecycle phase.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateComplete State = "complete"
)

// CompletionFunc is invoked exactly once when the final phase finishes. It
// receives the sequence id and the wall-clock time spent outside pauses.
type CompletionFunc func(sequenceID string, actual time.Duration)

// Snapshot is the read-only view handed to API and presentation layers.
type Snapshot struct {
	SequenceID   string    `json:"sequence_id"`
	State        State     `json:"state"`
	RemainingSec int       `json:"remaining_sec"`
	Progress     Report    `json:"progress"`
	Activity     *Activity `json:"activity,omitempty"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithTickInterval overrides the one-second heartbeat, mainly for tests.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithCompletion registers the completion callback.
func WithCompletion(fn CompletionFunc) Option {
	return func(c *Controller) { c.onComplete = fn }
}

// WithClock overrides the wall-clock source used for duration accounting.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller drives one Sequence from start to completion through the
// states idle -> running -> {paused <-> running} -> complete. Every
// operation, including ticks from the run loop, is serialised on one mutex,
// so cursor and timer state never race.
type Controller struct {
	mu          sync.Mutex
	seq         *Sequence
	state       State
	cursor      int
	timer       *PhaseTimer
	interval    time.Duration
	onComplete  CompletionFunc
	now         func() time.Time
	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration
	done        chan struct{}
}

// NewController binds a controller to an already validated sequence.
func NewController(seq *Sequence, opts ...Option) *Controller {
	c := &Controller{
		seq:      seq,
		state:    StateIdle,
		interval: time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start positions the cursor on the first phase and begins its countdown.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateComplete:
		return ErrAlreadyComplete
	case StateRunning, StatePaused:
		return ErrAlreadyStarted
	}
	c.beginLocked()
	return nil
}

// Run delivers wall-clock ticks until the sequence completes, Stop is
// called, or ctx is cancelled. Because the loop exits at terminal state and
// ticks are inert outside running, no stale tick can resurrect an ended
// session.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return ErrNotStarted
	}
	interval := c.interval
	c.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.mu.Lock()
		done := c.done
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Tick consumes one second of the current phase and auto-advances on
// expiry. Ticks are discarded unless the controller is running.
func (c *Controller) Tick() {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}

	var completed bool
	var actual time.Duration
	if c.timer.Tick() {
		completed, actual = c.advanceLocked()
	}
	cb := c.onComplete
	id := c.seq.ID()
	c.mu.Unlock()

	if completed && cb != nil {
		cb(id, actual)
	}
}

// Advance skips to the next phase, or to the terminal state when the
// current phase is the last one.
func (c *Controller) Advance() error {
	c.mu.Lock()
	if err := c.controllableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}

	completed, actual := c.advanceLocked()
	cb := c.onComplete
	id := c.seq.ID()
	c.mu.Unlock()

	if completed && cb != nil {
		cb(id, actual)
	}
	return nil
}

// JumpTo repositions the cursor to an already seen phase and restarts its
// countdown. Indices past the cursor are rejected so callers cannot skip
// unseen phases.
func (c *Controller) JumpTo(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.controllableLocked(); err != nil {
		return err
	}
	if index < 0 || index > c.cursor {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrInvalidIndex, index, c.cursor)
	}
	c.cursor = index
	c.timer.Reset(c.seq.At(index).DurationSec)
	return nil
}

// Pause suspends the countdown without moving the cursor. No-op when
// already paused.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.controllableLocked(); err != nil {
		return err
	}
	if c.state == StatePaused {
		return nil
	}
	c.state = StatePaused
	c.pausedAt = c.now()
	return nil
}

// Resume continues the countdown with the remaining time untouched. No-op
// when already running.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.controllableLocked(); err != nil {
		return err
	}
	if c.state == StateRunning {
		return nil
	}
	c.pausedTotal += c.now().Sub(c.pausedAt)
	c.pausedAt = time.Time{}
	c.state = StateRunning
	return nil
}

// Reset rewinds to the first phase and returns the controller to running.
// Allowed from any started state, including complete ("replay"); a
// controller whose run loop already exited needs Run called again.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateIdle {
		return ErrNotStarted
	}
	c.beginLocked()
	return nil
}

// Stop ends the run loop without completing the sequence, e.g. when the
// session is abandoned. Safe to call more than once.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done == nil {
		return
	}
	select {
	case <-c.done:
	default:
		close(c.done)
	}
}

// Snapshot returns the read-only view of the current position.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		SequenceID: c.seq.ID(),
		State:      c.state,
		Progress:   Progress(c.seq, c.cursor),
	}
	if c.timer != nil {
		snap.RemainingSec = c.timer.Remaining()
	}
	if c.cursor < c.seq.Len() {
		activity := c.seq.At(c.cursor)
		snap.Activity = &activity
	}
	return snap
}

func (c *Controller) beginLocked() {
	c.state = StateRunning
	c.cursor = 0
	c.timer = NewPhaseTimer(c.seq.At(0).DurationSec)
	c.startedAt = c.now()
	c.pausedAt = time.Time{}
	c.pausedTotal = 0

	if c.done == nil {
		c.done = make(chan struct{})
		return
	}
	select {
	case <-c.done:
		c.done = make(chan struct{})
	default:
	}
}

func (c *Controller) controllableLocked() error {
	switch c.state {
	case StateIdle:
		return ErrNotStarted
	case StateComplete:
		return ErrAlreadyComplete
	}
	return nil
}

// advanceLocked moves the cursor forward and reports whether the sequence
// just completed, along with the actual running duration when it did.
func (c *Controller) advanceLocked() (bool, time.Duration) {
	c.cursor++
	if c.cursor >= c.seq.Len() {
		c.cursor = c.seq.Len()
		return true, c.completeLocked()
	}
	c.timer.Reset(c.seq.At(c.cursor).DurationSec)
	return false, 0
}

func (c *Controller) completeLocked() time.Duration {
	if !c.pausedAt.IsZero() {
		c.pausedTotal += c.now().Sub(c.pausedAt)
		c.pausedAt = time.Time{}
	}
	c.state = StateComplete
	c.timer = nil
	close(c.done)
	return c.now().Sub(c.startedAt) - c.pausedTotal
}
