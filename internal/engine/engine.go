// Package engine tracks the live controllers of in-flight sessions.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"example.com/session/internal/sequence"
)

var (
	// ErrSessionNotLive is returned when no in-flight session matches the id.
	ErrSessionNotLive = errors.New("session is not live")
	// ErrSessionExists is returned when a session id is already live.
	ErrSessionExists = errors.New("session already live")
)

// CompletionFunc is invoked exactly once per completed session.
type CompletionFunc func(sessionID, tenantID string, actual time.Duration)

type liveSession struct {
	tenantID string
	ctrl     *sequence.Controller
	cancel   context.CancelFunc
}

// Engine owns one sequence controller per in-flight session. Each
// controller ticks in its own goroutine; the engine only routes control
// operations and the completion hook.
type Engine struct {
	mu         sync.Mutex
	baseCtx    context.Context
	interval   time.Duration
	onComplete CompletionFunc
	live       map[string]*liveSession
}

// New builds an engine whose run goroutines stop when baseCtx is
// cancelled. The tick interval applies to every session it starts.
func New(baseCtx context.Context, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = time.Second
	}
	return &Engine{
		baseCtx:  baseCtx,
		interval: interval,
		live:     make(map[string]*liveSession),
	}
}

// SetCompletion registers the completion hook. Must be called before the
// first session starts.
func (e *Engine) SetCompletion(fn CompletionFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onComplete = fn
}

// Start brings a new session live and begins ticking its first phase.
func (e *Engine) Start(sessionID, tenantID string, seq *sequence.Sequence) (sequence.Snapshot, error) {
	e.mu.Lock()
	if _, exists := e.live[sessionID]; exists {
		e.mu.Unlock()
		return sequence.Snapshot{}, ErrSessionExists
	}

	runCtx, cancel := context.WithCancel(e.baseCtx)
	ctrl := sequence.NewController(seq,
		sequence.WithTickInterval(e.interval),
		sequence.WithCompletion(func(_ string, actual time.Duration) {
			e.finish(sessionID, actual)
		}),
	)
	e.live[sessionID] = &liveSession{tenantID: tenantID, ctrl: ctrl, cancel: cancel}
	e.mu.Unlock()

	if err := ctrl.Start(); err != nil {
		e.remove(sessionID)
		cancel()
		return sequence.Snapshot{}, err
	}
	activeSessionsGauge.Inc()

	go func() {
		if err := ctrl.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("session run loop stopped (session=%s): %v", sessionID, err)
		}
	}()

	return ctrl.Snapshot(), nil
}

// Advance skips the live session to its next phase.
func (e *Engine) Advance(sessionID string) error {
	ctrl, err := e.controller(sessionID)
	if err != nil {
		return err
	}
	return ctrl.Advance()
}

// Pause suspends the live session's countdown.
func (e *Engine) Pause(sessionID string) error {
	ctrl, err := e.controller(sessionID)
	if err != nil {
		return err
	}
	return ctrl.Pause()
}

// Resume continues a paused session.
func (e *Engine) Resume(sessionID string) error {
	ctrl, err := e.controller(sessionID)
	if err != nil {
		return err
	}
	return ctrl.Resume()
}

// JumpTo repositions the live session to an already seen phase.
func (e *Engine) JumpTo(sessionID string, index int) error {
	ctrl, err := e.controller(sessionID)
	if err != nil {
		return err
	}
	return ctrl.JumpTo(index)
}

// Reset replays the live session from its first phase.
func (e *Engine) Reset(sessionID string) error {
	ctrl, err := e.controller(sessionID)
	if err != nil {
		return err
	}
	return ctrl.Reset()
}

// Snapshot returns the live session's current position.
func (e *Engine) Snapshot(sessionID string) (sequence.Snapshot, error) {
	ctrl, err := e.controller(sessionID)
	if err != nil {
		return sequence.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// End abandons a live session: the run loop is cancelled and no completion
// hook fires.
func (e *Engine) End(sessionID string) error {
	e.mu.Lock()
	entry, ok := e.live[sessionID]
	if ok {
		delete(e.live, sessionID)
	}
	e.mu.Unlock()

	if !ok {
		return ErrSessionNotLive
	}
	entry.ctrl.Stop()
	entry.cancel()
	activeSessionsGauge.Dec()
	return nil
}

// Shutdown ends every live session without firing completion hooks.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	entries := make([]*liveSession, 0, len(e.live))
	for id, entry := range e.live {
		entries = append(entries, entry)
		delete(e.live, id)
	}
	e.mu.Unlock()

	for _, entry := range entries {
		entry.ctrl.Stop()
		entry.cancel()
		activeSessionsGauge.Dec()
	}
}

// finish runs on the controller's completion path: drop the live entry,
// then hand off to the registered hook outside the lock.
func (e *Engine) finish(sessionID string, actual time.Duration) {
	e.mu.Lock()
	entry, ok := e.live[sessionID]
	if ok {
		delete(e.live, sessionID)
	}
	hook := e.onComplete
	e.mu.Unlock()

	if !ok {
		return
	}
	entry.cancel()
	activeSessionsGauge.Dec()
	sessionsCompletedCounter.Inc()

	if hook != nil {
		hook(sessionID, entry.tenantID, actual)
	}
}

func (e *Engine) controller(sessionID string) (*sequence.Controller, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.live[sessionID]
	if !ok {
		return nil, ErrSessionNotLive
	}
	return entry.ctrl, nil
}

func (e *Engine) remove(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.live, sessionID)
}
