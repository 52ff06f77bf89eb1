package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/session/internal/engine"
	"example.com/session/internal/preset"
	"example.com/session/internal/ritual"
	"example.com/session/internal/sequence"
)

type fakeRepo struct {
	existing    *SessionAggregate
	created     []SessionAggregate
	createdKeys []string
	stateCalls  []string
	completed   struct {
		sessionID string
		actualSec int
		calls     int
	}
	summary  SessionSummary
	timeline []SessionAggregate
	getErr   error
}

func (f *fakeRepo) FindByIdempotency(_ context.Context, _, _, key string) (*SessionAggregate, error) {
	if key != "" && f.existing != nil {
		return f.existing, nil
	}
	return nil, nil
}

func (f *fakeRepo) Create(_ context.Context, aggregate SessionAggregate, idempotencyKey string) error {
	f.created = append(f.created, aggregate)
	f.createdKeys = append(f.createdKeys, idempotencyKey)
	return nil
}

func (f *fakeRepo) Get(_ context.Context, _, sessionID string) (*SessionAggregate, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for i := range f.created {
		if f.created[i].ID == sessionID {
			return &f.created[i], nil
		}
	}
	if f.existing != nil && f.existing.ID == sessionID {
		return f.existing, nil
	}
	return nil, nil
}

func (f *fakeRepo) ListByUser(_ context.Context, _, _ string, _ *Cursor, limit int) ([]SessionAggregate, *Cursor, error) {
	if limit > len(f.timeline) {
		limit = len(f.timeline)
	}
	return f.timeline[:limit], nil, nil
}

func (f *fakeRepo) UpdateState(_ context.Context, _, sessionID string, state SessionState, reason string) error {
	f.stateCalls = append(f.stateCalls, sessionID+":"+string(state)+":"+reason)
	return nil
}

func (f *fakeRepo) MarkCompleted(_ context.Context, _, sessionID string, actualSec int, _ time.Time) error {
	f.completed.sessionID = sessionID
	f.completed.actualSec = actualSec
	f.completed.calls++
	return nil
}

func (f *fakeRepo) SummaryByUser(_ context.Context, _, _ string, _ time.Duration) (SessionSummary, error) {
	return f.summary, nil
}

type fakeRuntime struct {
	started  []string
	ops      []string
	opErr    error
	snapshot sequence.Snapshot
}

func (f *fakeRuntime) Start(sessionID, tenantID string, seq *sequence.Sequence) (sequence.Snapshot, error) {
	f.started = append(f.started, sessionID)
	return sequence.Snapshot{SequenceID: sessionID, State: sequence.StateRunning, RemainingSec: seq.At(0).DurationSec}, nil
}

func (f *fakeRuntime) op(name string) error {
	f.ops = append(f.ops, name)
	return f.opErr
}

func (f *fakeRuntime) Advance(sessionID string) error      { return f.op("advance:" + sessionID) }
func (f *fakeRuntime) Pause(sessionID string) error        { return f.op("pause:" + sessionID) }
func (f *fakeRuntime) Resume(sessionID string) error       { return f.op("resume:" + sessionID) }
func (f *fakeRuntime) JumpTo(sessionID string, i int) error { return f.op("jump:" + sessionID) }
func (f *fakeRuntime) Reset(sessionID string) error        { return f.op("reset:" + sessionID) }
func (f *fakeRuntime) End(sessionID string) error          { return f.op("end:" + sessionID) }

func (f *fakeRuntime) Snapshot(sessionID string) (sequence.Snapshot, error) {
	if f.opErr != nil {
		return sequence.Snapshot{}, f.opErr
	}
	snap := f.snapshot
	if snap.SequenceID == "" {
		snap.SequenceID = sessionID
	}
	return snap, nil
}

func newTestService(repo *fakeRepo, runtime *fakeRuntime) *Service {
	return NewService(repo, runtime, preset.NewCatalog(), ritual.NewCatalogAdapter())
}

func TestStartSessionFromPreset(t *testing.T) {
	repo := &fakeRepo{}
	runtime := &fakeRuntime{}
	svc := newTestService(repo, runtime)

	agg, snap, replay, err := svc.StartSession(context.Background(), StartSessionInput{
		TenantID: "tenant-1",
		UserID:   "user-1",
		PresetID: "panic-attack",
	})
	require.NoError(t, err)
	require.False(t, replay)
	require.Equal(t, "panic-attack", agg.RitualID)
	require.Equal(t, "Panic Attack", agg.RitualName)
	require.Equal(t, "preset", agg.Source)
	require.Equal(t, 4, agg.PhaseCount)
	require.Equal(t, 165, agg.PlannedDurationSec)
	require.Equal(t, SessionStateActive, agg.State)
	require.Equal(t, "v1", agg.Version)

	require.Len(t, repo.created, 1)
	require.Equal(t, []string{agg.ID}, runtime.started)
	require.Equal(t, sequence.StateRunning, snap.State)
	require.Equal(t, 30, snap.RemainingSec)
}

func TestStartSessionUnknownPreset(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeRuntime{})

	_, _, _, err := svc.StartSession(context.Background(), StartSessionInput{
		TenantID: "tenant-1",
		UserID:   "user-1",
		PresetID: "nope",
	})
	require.ErrorIs(t, err, ErrUnknownPreset)
}

func TestStartSessionCustomRitual(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, &fakeRuntime{})

	agg, _, _, err := svc.StartSession(context.Background(), StartSessionInput{
		TenantID: "tenant-1",
		UserID:   "user-1",
		Activities: []ritual.ActivityDef{
			{ID: "a", Kind: "breathing", Title: "Breathe", DurationSec: 60},
			{ID: "b", Kind: "journal", Title: "Reflect", DurationSec: 30},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "custom", agg.Source)
	require.Equal(t, "Custom ritual", agg.RitualName)
	require.NotEmpty(t, agg.RitualID)
	require.Equal(t, 90, agg.PlannedDurationSec)
}

func TestStartSessionIdempotentReplay(t *testing.T) {
	existing := &SessionAggregate{ID: "sess-1", TenantID: "tenant-1", UserID: "user-1", State: SessionStateActive}
	repo := &fakeRepo{existing: existing}
	runtime := &fakeRuntime{}
	svc := newTestService(repo, runtime)

	agg, _, replay, err := svc.StartSession(context.Background(), StartSessionInput{
		TenantID:       "tenant-1",
		UserID:         "user-1",
		PresetID:       "panic-attack",
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	require.True(t, replay)
	require.Equal(t, "sess-1", agg.ID)
	require.Empty(t, repo.created)
	require.Empty(t, runtime.started)
}

func TestStartSessionRejectsInvalidContent(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeRuntime{})

	_, _, _, err := svc.StartSession(context.Background(), StartSessionInput{
		TenantID:   "tenant-1",
		UserID:     "user-1",
		Activities: []ritual.ActivityDef{},
	})
	require.ErrorIs(t, err, sequence.ErrInvalidSequence)
}

func TestPauseResumeRecordState(t *testing.T) {
	repo := &fakeRepo{}
	runtime := &fakeRuntime{}
	svc := newTestService(repo, runtime)

	agg, _, _, err := svc.StartSession(context.Background(), StartSessionInput{
		TenantID: "tenant-1", UserID: "user-1", PresetID: "overwhelm",
	})
	require.NoError(t, err)

	_, err = svc.PauseSession(context.Background(), "tenant-1", agg.ID)
	require.NoError(t, err)
	_, err = svc.ResumeSession(context.Background(), "tenant-1", agg.ID)
	require.NoError(t, err)

	require.Equal(t, []string{
		"pause:" + agg.ID,
		"resume:" + agg.ID,
	}, runtime.ops)
	require.Equal(t, []string{
		agg.ID + ":paused:user_pause",
		agg.ID + ":active:user_resume",
	}, repo.stateCalls)
}

func TestControlOpsOnMissingSession(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeRuntime{})

	_, err := svc.AdvanceSession(context.Background(), "tenant-1", "ghost")
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.PauseSession(context.Background(), "tenant-1", "ghost")
	require.ErrorIs(t, err, ErrSessionNotFound)
	err = svc.AbandonSession(context.Background(), "tenant-1", "ghost")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRuntimeNotLiveMapsToDomainError(t *testing.T) {
	repo := &fakeRepo{}
	runtime := &fakeRuntime{}
	svc := newTestService(repo, runtime)

	agg, _, _, err := svc.StartSession(context.Background(), StartSessionInput{
		TenantID: "tenant-1", UserID: "user-1", PresetID: "overwhelm",
	})
	require.NoError(t, err)

	runtime.opErr = engine.ErrSessionNotLive
	_, err = svc.AdvanceSession(context.Background(), "tenant-1", agg.ID)
	require.ErrorIs(t, err, ErrSessionNotLive)
}

func TestAbandonSessionEndsRuntimeAndRecordsState(t *testing.T) {
	repo := &fakeRepo{}
	runtime := &fakeRuntime{}
	svc := newTestService(repo, runtime)

	agg, _, _, err := svc.StartSession(context.Background(), StartSessionInput{
		TenantID: "tenant-1", UserID: "user-1", PresetID: "cant-sleep",
	})
	require.NoError(t, err)

	require.NoError(t, svc.AbandonSession(context.Background(), "tenant-1", agg.ID))
	require.Equal(t, []string{"end:" + agg.ID}, runtime.ops)
	require.Equal(t, []string{agg.ID + ":abandoned:user_abandon"}, repo.stateCalls)
}

func TestHandleCompletionPersistsActualDuration(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, &fakeRuntime{})

	svc.HandleCompletion("sess-1", "tenant-1", 95*time.Second)

	require.Equal(t, 1, repo.completed.calls)
	require.Equal(t, "sess-1", repo.completed.sessionID)
	require.Equal(t, 95, repo.completed.actualSec)
}

func TestGetSessionMetrics(t *testing.T) {
	now := time.Now().UTC()
	repo := &fakeRepo{
		summary: SessionSummary{
			Total:          4,
			Completed:      3,
			Abandoned:      1,
			CompletionRate: 0.75,
			LastSessionAt:  &now,
		},
		timeline: []SessionAggregate{
			{ID: "sess-1"}, {ID: "sess-2"}, {ID: "sess-3"},
		},
	}
	svc := newTestService(repo, &fakeRuntime{})

	metrics, err := svc.GetSessionMetrics(context.Background(), "tenant-1", "user-1", 24*time.Hour, 2)
	require.NoError(t, err)
	require.Equal(t, 4, metrics.Summary.Total)
	require.Len(t, metrics.Timeline, 2)
	require.Equal(t, int64(86400), metrics.WindowSeconds)
}
