// Package domain defines the business logic for the session service.
package domain

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"example.com/session/internal/engine"
	"example.com/session/internal/observability"
	"example.com/session/internal/preset"
	"example.com/session/internal/ritual"
	"example.com/session/internal/sequence"
)

var (
	// ErrSessionNotFound is returned when a session cannot be located.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUnknownPreset is returned when the requested preset id is not in
	// the catalog.
	ErrUnknownPreset = errors.New("unknown preset")
	// ErrSessionNotLive is returned for control operations on a session
	// that is no longer in flight.
	ErrSessionNotLive = errors.New("session is not live")
)

// SessionRepository captures persistence operations.
type SessionRepository interface {
	FindByIdempotency(ctx context.Context, tenantID, userID, idempotencyKey string) (*SessionAggregate, error)
	Create(ctx context.Context, aggregate SessionAggregate, idempotencyKey string) error
	Get(ctx context.Context, tenantID, sessionID string) (*SessionAggregate, error)
	ListByUser(ctx context.Context, tenantID, userID string, cursor *Cursor, limit int) ([]SessionAggregate, *Cursor, error)
	UpdateState(ctx context.Context, tenantID, sessionID string, state SessionState, reason string) error
	MarkCompleted(ctx context.Context, tenantID, sessionID string, actualSec int, completedAt time.Time) error
	SummaryByUser(ctx context.Context, tenantID, userID string, window time.Duration) (SessionSummary, error)
}

// Runtime is the live-session surface the service drives. Implemented by
// engine.Engine.
type Runtime interface {
	Start(sessionID, tenantID string, seq *sequence.Sequence) (sequence.Snapshot, error)
	Advance(sessionID string) error
	Pause(sessionID string) error
	Resume(sessionID string) error
	JumpTo(sessionID string, index int) error
	Reset(sessionID string) error
	Snapshot(sessionID string) (sequence.Snapshot, error)
	End(sessionID string) error
}

// Service orchestrates session workflows across the repository, the
// adapter, and the live engine.
type Service struct {
	repo    SessionRepository
	runtime Runtime
	presets *preset.Catalog
	adapter *ritual.Adapter
}

// NewService constructs a Service.
func NewService(repo SessionRepository, runtime Runtime, presets *preset.Catalog, adapter *ritual.Adapter) *Service {
	return &Service{repo: repo, runtime: runtime, presets: presets, adapter: adapter}
}

// StartSessionInput captures the payload from the API layer. Exactly one
// of PresetID or Activities describes the content.
type StartSessionInput struct {
	TenantID       string
	UserID         string
	PresetID       string
	RitualName     string
	Activities     []ritual.ActivityDef
	IdempotencyKey string
}

// StartSession builds the sequence, persists the aggregate, and brings the
// session live. The bool result reports an idempotent replay.
func (s *Service) StartSession(ctx context.Context, input StartSessionInput) (*SessionAggregate, sequence.Snapshot, bool, error) {
	if existing, err := s.repo.FindByIdempotency(ctx, input.TenantID, input.UserID, input.IdempotencyKey); err == nil && existing != nil {
		snap, _ := s.runtime.Snapshot(existing.ID)
		return existing, snap, true, nil
	}

	seq, ritualID, ritualName, source, err := s.resolveContent(input)
	if err != nil {
		return nil, sequence.Snapshot{}, false, err
	}

	now := time.Now().UTC()
	aggregate := SessionAggregate{
		ID:                 uuid.NewString(),
		TenantID:           input.TenantID,
		UserID:             input.UserID,
		RitualID:           ritualID,
		RitualName:         ritualName,
		Source:             source,
		PhaseCount:         seq.Len(),
		PlannedDurationSec: seq.TotalDurationSec(),
		State:              SessionStateActive,
		StartedAt:          now,
		Version:            "v1",
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.repo.Create(ctx, aggregate, input.IdempotencyKey); err != nil {
		return nil, sequence.Snapshot{}, false, err
	}

	snap, err := s.runtime.Start(aggregate.ID, aggregate.TenantID, seq)
	if err != nil {
		return nil, sequence.Snapshot{}, false, err
	}
	return &aggregate, snap, false, nil
}

// HandleCompletion is the engine's completion hook: it records the actual
// duration and terminal state. Wired in main via Engine.SetCompletion.
func (s *Service) HandleCompletion(sessionID, tenantID string, actual time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	completedAt := time.Now().UTC()
	if err := s.repo.MarkCompleted(ctx, tenantID, sessionID, int(actual.Seconds()), completedAt); err != nil {
		log.Printf("failed to persist session completion (session=%s): %v", sessionID, err)
		return
	}
	observability.RecordSessionCompleted(completedAt)
}

// AdvanceSession skips the live session to its next phase.
func (s *Service) AdvanceSession(ctx context.Context, tenantID, sessionID string) (sequence.Snapshot, error) {
	if err := s.requireSession(ctx, tenantID, sessionID); err != nil {
		return sequence.Snapshot{}, err
	}
	if err := s.runtime.Advance(sessionID); err != nil {
		return sequence.Snapshot{}, mapRuntimeErr(err)
	}
	return s.liveSnapshot(sessionID)
}

// PauseSession suspends the countdown and records the paused state.
func (s *Service) PauseSession(ctx context.Context, tenantID, sessionID string) (sequence.Snapshot, error) {
	if err := s.requireSession(ctx, tenantID, sessionID); err != nil {
		return sequence.Snapshot{}, err
	}
	if err := s.runtime.Pause(sessionID); err != nil {
		return sequence.Snapshot{}, mapRuntimeErr(err)
	}
	if err := s.repo.UpdateState(ctx, tenantID, sessionID, SessionStatePaused, "user_pause"); err != nil {
		return sequence.Snapshot{}, err
	}
	return s.liveSnapshot(sessionID)
}

// ResumeSession continues a paused session and records the active state.
func (s *Service) ResumeSession(ctx context.Context, tenantID, sessionID string) (sequence.Snapshot, error) {
	if err := s.requireSession(ctx, tenantID, sessionID); err != nil {
		return sequence.Snapshot{}, err
	}
	if err := s.runtime.Resume(sessionID); err != nil {
		return sequence.Snapshot{}, mapRuntimeErr(err)
	}
	if err := s.repo.UpdateState(ctx, tenantID, sessionID, SessionStateActive, "user_resume"); err != nil {
		return sequence.Snapshot{}, err
	}
	return s.liveSnapshot(sessionID)
}

// JumpSession repositions the live session to an already seen phase.
func (s *Service) JumpSession(ctx context.Context, tenantID, sessionID string, index int) (sequence.Snapshot, error) {
	if err := s.requireSession(ctx, tenantID, sessionID); err != nil {
		return sequence.Snapshot{}, err
	}
	if err := s.runtime.JumpTo(sessionID, index); err != nil {
		return sequence.Snapshot{}, mapRuntimeErr(err)
	}
	return s.liveSnapshot(sessionID)
}

// ResetSession replays the live session from its first phase.
func (s *Service) ResetSession(ctx context.Context, tenantID, sessionID string) (sequence.Snapshot, error) {
	if err := s.requireSession(ctx, tenantID, sessionID); err != nil {
		return sequence.Snapshot{}, err
	}
	if err := s.runtime.Reset(sessionID); err != nil {
		return sequence.Snapshot{}, mapRuntimeErr(err)
	}
	if err := s.repo.UpdateState(ctx, tenantID, sessionID, SessionStateActive, "user_reset"); err != nil {
		return sequence.Snapshot{}, err
	}
	return s.liveSnapshot(sessionID)
}

// AbandonSession ends a live session without completing it.
func (s *Service) AbandonSession(ctx context.Context, tenantID, sessionID string) error {
	if err := s.requireSession(ctx, tenantID, sessionID); err != nil {
		return err
	}
	if err := s.runtime.End(sessionID); err != nil {
		return mapRuntimeErr(err)
	}
	return s.repo.UpdateState(ctx, tenantID, sessionID, SessionStateAbandoned, "user_abandon")
}

// SessionProgress returns the live snapshot for an in-flight session.
func (s *Service) SessionProgress(ctx context.Context, tenantID, sessionID string) (sequence.Snapshot, error) {
	if err := s.requireSession(ctx, tenantID, sessionID); err != nil {
		return sequence.Snapshot{}, err
	}
	return s.liveSnapshot(sessionID)
}

// GetSession fetches the stored aggregate by id.
func (s *Service) GetSession(ctx context.Context, tenantID, sessionID string) (*SessionAggregate, error) {
	agg, err := s.repo.Get(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return nil, ErrSessionNotFound
	}
	return agg, nil
}

// ListSessionsByUser fetches session history with cursor pagination.
func (s *Service) ListSessionsByUser(ctx context.Context, tenantID, userID string, cursor *Cursor, limit int) ([]SessionAggregate, *Cursor, error) {
	return s.repo.ListByUser(ctx, tenantID, userID, cursor, limit)
}

// SessionMetrics merges summary stats with a recent timeline.
type SessionMetrics struct {
	Summary       SessionSummary
	Timeline      []SessionAggregate
	WindowSeconds int64
}

// GetSessionMetrics computes summary stats and the recent timeline for a
// user. A zero window means all time.
func (s *Service) GetSessionMetrics(ctx context.Context, tenantID, userID string, window time.Duration, timelineLimit int) (*SessionMetrics, error) {
	summary, err := s.repo.SummaryByUser(ctx, tenantID, userID, window)
	if err != nil {
		return nil, err
	}

	timeline, _, err := s.repo.ListByUser(ctx, tenantID, userID, nil, timelineLimit)
	if err != nil {
		return nil, err
	}

	return &SessionMetrics{
		Summary:       summary,
		Timeline:      timeline,
		WindowSeconds: int64(window.Seconds()),
	}, nil
}

func (s *Service) resolveContent(input StartSessionInput) (*sequence.Sequence, string, string, string, error) {
	if input.PresetID != "" {
		p, ok := s.presets.Get(input.PresetID)
		if !ok {
			return nil, "", "", "", ErrUnknownPreset
		}
		seq, err := s.adapter.FromPreset(p)
		if err != nil {
			return nil, "", "", "", err
		}
		return seq, p.ID, p.Name, "preset", nil
	}

	name := input.RitualName
	if name == "" {
		name = "Custom ritual"
	}
	ritualID := uuid.NewString()
	seq, err := s.adapter.Build(ritualID, input.Activities)
	if err != nil {
		return nil, "", "", "", err
	}
	return seq, ritualID, name, "custom", nil
}

func (s *Service) requireSession(ctx context.Context, tenantID, sessionID string) error {
	agg, err := s.repo.Get(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}
	if agg == nil {
		return ErrSessionNotFound
	}
	return nil
}

func (s *Service) liveSnapshot(sessionID string) (sequence.Snapshot, error) {
	snap, err := s.runtime.Snapshot(sessionID)
	if err != nil {
		return sequence.Snapshot{}, mapRuntimeErr(err)
	}
	return snap, nil
}

func mapRuntimeErr(err error) error {
	if errors.Is(err, engine.ErrSessionNotLive) {
		return ErrSessionNotLive
	}
	return err
}
