package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/session/internal/domain"
	"example.com/session/internal/events"
	"example.com/session/internal/observability"
)

const sessionColumns = `session_id, tenant_id, user_id, ritual_id, ritual_name, source, phase_count, planned_duration_sec, actual_duration_sec, state, started_at, completed_at, version, created_at, updated_at`

// Repository provides Postgres-backed persistence for sessions and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByIdempotency checks if a session already exists for the supplied idempotency key.
func (r *Repository) FindByIdempotency(ctx context.Context, tenantID, userID, idempotencyKey string) (*domain.SessionAggregate, error) {
	if idempotencyKey == "" {
		return nil, nil
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE tenant_id=$1 AND user_id=$2 AND idempotency_key=$3`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	agg, err := scanSession(tx.QueryRow(ctx, query, tenantID, userID, idempotencyKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return agg, nil
}

// Create persists the aggregate and records outbox events inside a single transaction.
func (r *Repository) Create(ctx context.Context, aggregate domain.SessionAggregate, idempotencyKey string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", aggregate.TenantID); err != nil {
		return err
	}

	insertSession := `INSERT INTO sessions (session_id, tenant_id, user_id, ritual_id, ritual_name, source, phase_count, planned_duration_sec, actual_duration_sec, state, started_at, completed_at, idempotency_key, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err = tx.Exec(ctx, insertSession,
		aggregate.ID,
		aggregate.TenantID,
		aggregate.UserID,
		aggregate.RitualID,
		aggregate.RitualName,
		aggregate.Source,
		aggregate.PhaseCount,
		aggregate.PlannedDurationSec,
		aggregate.ActualDurationSec,
		aggregate.State,
		aggregate.StartedAt,
		aggregate.CompletedAt,
		nullIfEmpty(idempotencyKey),
		aggregate.Version,
		aggregate.CreatedAt,
		aggregate.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, aggregate, "session.started", "", events.SessionStarted{
		SessionID:          aggregate.ID,
		TenantID:           aggregate.TenantID,
		UserID:             aggregate.UserID,
		RitualID:           aggregate.RitualID,
		RitualName:         aggregate.RitualName,
		Source:             aggregate.Source,
		PhaseCount:         aggregate.PhaseCount,
		PlannedDurationSec: aggregate.PlannedDurationSec,
		StartedAt:          aggregate.StartedAt,
		Version:            aggregate.Version,
	}); err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, aggregate, "session.state_changed", "session_start", events.SessionStateChanged{
		SessionID:  aggregate.ID,
		TenantID:   aggregate.TenantID,
		UserID:     aggregate.UserID,
		State:      string(aggregate.State),
		OccurredAt: aggregate.UpdatedAt,
		Reason:     "session_start",
	}); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return err
	}
	observability.RecordSessionPersisted(aggregate.UpdatedAt)
	return nil
}

// UpdateState transitions the stored lifecycle state and records a
// state_changed outbox event in the same transaction.
func (r *Repository) UpdateState(ctx context.Context, tenantID, sessionID string, state domain.SessionState, reason string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}

	now := time.Now().UTC()
	const stmt = `UPDATE sessions SET state=$1, updated_at=$2 WHERE tenant_id=$3 AND session_id=$4 RETURNING user_id`

	var userID string
	if err = tx.QueryRow(ctx, stmt, state, now, tenantID, sessionID).Scan(&userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrSessionNotFound
		}
		return err
	}

	dedupeSuffix := fmt.Sprintf("%s:%d", reason, now.UnixNano())
	if err = r.insertOutbox(ctx, tx, domain.SessionAggregate{ID: sessionID, TenantID: tenantID, UserID: userID}, "session.state_changed", dedupeSuffix, events.SessionStateChanged{
		SessionID:  sessionID,
		TenantID:   tenantID,
		UserID:     userID,
		State:      string(state),
		OccurredAt: now,
		Reason:     reason,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// MarkCompleted records the terminal state with the actually elapsed
// duration and emits session.completed through the outbox.
func (r *Repository) MarkCompleted(ctx context.Context, tenantID, sessionID string, actualSec int, completedAt time.Time) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}

	const stmt = `UPDATE sessions
        SET state=$1, actual_duration_sec=$2, completed_at=$3, updated_at=$3
        WHERE tenant_id=$4 AND session_id=$5
        RETURNING user_id, ritual_id, planned_duration_sec, version`

	var (
		userID     string
		ritualID   string
		plannedSec int
		version    string
	)
	if err = tx.QueryRow(ctx, stmt, domain.SessionStateCompleted, actualSec, completedAt, tenantID, sessionID).Scan(&userID, &ritualID, &plannedSec, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = domain.ErrSessionNotFound
		}
		return err
	}

	routing := domain.SessionAggregate{ID: sessionID, TenantID: tenantID, UserID: userID}
	if err = r.insertOutbox(ctx, tx, routing, "session.completed", "", events.SessionCompleted{
		SessionID:          sessionID,
		TenantID:           tenantID,
		UserID:             userID,
		RitualID:           ritualID,
		PlannedDurationSec: plannedSec,
		ActualDurationSec:  actualSec,
		CompletedAt:        completedAt,
		Version:            version,
	}); err != nil {
		return err
	}

	if err = r.insertOutbox(ctx, tx, routing, "session.state_changed", "timer_complete", events.SessionStateChanged{
		SessionID:  sessionID,
		TenantID:   tenantID,
		UserID:     userID,
		State:      string(domain.SessionStateCompleted),
		OccurredAt: completedAt,
		Reason:     "timer_complete",
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// insertOutbox records an event row for the dispatcher. The dedupe suffix
// distinguishes repeated occurrences of the same event type (pause, resume)
// for one session.
func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, aggregate domain.SessionAggregate, eventType, dedupeSuffix string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta := eventCatalog[eventType]
	if meta.Topic == "" {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	partitionKey := meta.PartitionKeyFn(aggregate)
	dedupeKey := fmt.Sprintf("%s:%s", aggregate.ID, eventType)
	if dedupeSuffix != "" {
		dedupeKey += ":" + dedupeSuffix
	}

	const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = tx.Exec(ctx, stmt,
		aggregate.TenantID,
		"session",
		aggregate.ID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

// Get retrieves a session by ID.
func (r *Repository) Get(ctx context.Context, tenantID, sessionID string) (*domain.SessionAggregate, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE tenant_id=$1 AND session_id=$2`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	agg, err := scanSession(tx.QueryRow(ctx, query, tenantID, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if err := tx.Commit(ctx); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return agg, nil
}

// ListByUser returns sessions for a user ordered by start time.
func (r *Repository) ListByUser(ctx context.Context, tenantID, userID string, cursor *domain.Cursor, limit int) ([]domain.SessionAggregate, *domain.Cursor, error) {
	args := []interface{}{tenantID, userID, limit}
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE tenant_id=$1 AND user_id=$2`

	if cursor != nil {
		query += ` AND (started_at, session_id) < ($4, $5)`
		args = append(args, cursor.StartedAt, cursor.ID)
	}

	query += ` ORDER BY started_at DESC, session_id DESC LIMIT $3`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.SessionAggregate, 0, limit)
	for rows.Next() {
		agg, err := scanSession(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, *agg)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	var nextCursor *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}

	return results, nextCursor, nil
}

// SummaryByUser aggregates lifecycle counts and averages for a user. A
// zero window covers all time.
func (r *Repository) SummaryByUser(ctx context.Context, tenantID, userID string, window time.Duration) (domain.SessionSummary, error) {
	const query = `SELECT
        COUNT(*),
        COUNT(*) FILTER (WHERE state IN ('active','paused')),
        COUNT(*) FILTER (WHERE state = 'completed'),
        COUNT(*) FILTER (WHERE state = 'abandoned'),
        COALESCE(AVG(planned_duration_sec), 0),
        COALESCE(AVG(actual_duration_sec) FILTER (WHERE state = 'completed'), 0),
        MAX(started_at)
        FROM sessions WHERE tenant_id=$1 AND user_id=$2 AND started_at >= $3`

	since := time.Time{}
	if window > 0 {
		since = time.Now().UTC().Add(-window)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return domain.SessionSummary{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return domain.SessionSummary{}, err
	}

	var (
		summary       domain.SessionSummary
		avgPlannedSec float64
		avgActualSec  float64
		lastSessionAt *time.Time
	)
	row := tx.QueryRow(ctx, query, tenantID, userID, since)
	if err := row.Scan(&summary.Total, &summary.Active, &summary.Completed, &summary.Abandoned, &avgPlannedSec, &avgActualSec, &lastSessionAt); err != nil {
		return domain.SessionSummary{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.SessionSummary{}, err
	}

	summary.AveragePlannedMinutes = avgPlannedSec / 60
	summary.AverageActualMinutes = avgActualSec / 60
	if summary.Total > 0 {
		summary.CompletionRate = float64(summary.Completed) / float64(summary.Total)
	}
	summary.LastSessionAt = lastSessionAt
	return summary, nil
}

func scanSession(row pgx.Row) (*domain.SessionAggregate, error) {
	var agg domain.SessionAggregate
	if err := row.Scan(
		&agg.ID,
		&agg.TenantID,
		&agg.UserID,
		&agg.RitualID,
		&agg.RitualName,
		&agg.Source,
		&agg.PhaseCount,
		&agg.PlannedDurationSec,
		&agg.ActualDurationSec,
		&agg.State,
		&agg.StartedAt,
		&agg.CompletedAt,
		&agg.Version,
		&agg.CreatedAt,
		&agg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &agg, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.SessionAggregate) string
}

var eventCatalog = map[string]EventMetadata{
	"session.started": {
		Topic:         "session_events",
		SchemaSubject: "session_events-value",
		PartitionKeyFn: func(s domain.SessionAggregate) string {
			return fmt.Sprintf("%s:%s", s.TenantID, s.UserID)
		},
	},
	"session.completed": {
		Topic:         "session_events",
		SchemaSubject: "session_events-value",
		PartitionKeyFn: func(s domain.SessionAggregate) string {
			return fmt.Sprintf("%s:%s", s.TenantID, s.UserID)
		},
	},
	"session.state_changed": {
		Topic:         "session_state_changed",
		SchemaSubject: "session_state_changed-value",
		PartitionKeyFn: func(s domain.SessionAggregate) string {
			return s.ID
		},
	},
}
