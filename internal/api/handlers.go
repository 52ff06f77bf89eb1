// Package api exposes HTTP handlers for the session service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/session/internal/auth"
	"example.com/session/internal/domain"
	"example.com/session/internal/persistence"
	"example.com/session/internal/preset"
	"example.com/session/internal/ritual"
	"example.com/session/internal/sequence"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	presets *preset.Catalog
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, presets *preset.Catalog) *Handler {
	return &Handler{service: service, presets: presets}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/sessions", h.sessions)
	mux.HandleFunc("/v1/sessions/", h.sessionSubresource)
	mux.HandleFunc("/v1/sessions/metrics", h.sessionMetrics)
	mux.HandleFunc("/v1/presets", h.listPresets)
	mux.HandleFunc("/v1/presets/", h.getPreset)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) sessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.startSession(w, r)
	case http.MethodGet:
		h.listSessions(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// sessionSubresource routes /v1/sessions/{id} and /v1/sessions/{id}/{action}.
func (h *Handler) sessionSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	if rest == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing session id")
		return
	}

	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	if action == "" {
		switch r.Method {
		case http.MethodGet:
			h.getSession(w, r, id)
		case http.MethodDelete:
			h.abandonSession(w, r, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		}
		return
	}

	if action == "progress" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
			return
		}
		h.sessionProgress(w, r, id)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	h.controlSession(w, r, id, action)
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSessionsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sessions:write required")
		return
	}

	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")

	aggregate, snap, replay, err := h.service.StartSession(r.Context(), domain.StartSessionInput{
		TenantID:       claims.TenantID,
		UserID:         req.UserID,
		PresetID:       req.PresetID,
		RitualName:     req.RitualName,
		Activities:     req.Phases,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := StartSessionResponse{
		SessionID: aggregate.ID,
		Status:    string(aggregate.State),
		Replay:    replay,
		Snapshot:  toSnapshotView(snap),
	}

	status := http.StatusAccepted
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireRead(w, r)
	if !ok {
		return
	}

	aggregate, err := h.service.GetSession(r.Context(), claims.TenantID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionView(*aggregate))
}

func (h *Handler) sessionProgress(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireRead(w, r)
	if !ok {
		return
	}

	snap, err := h.service.SessionProgress(r.Context(), claims.TenantID, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotView(snap))
}

func (h *Handler) controlSession(w http.ResponseWriter, r *http.Request, id, action string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSessionsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sessions:write required")
		return
	}

	var (
		snap sequence.Snapshot
		err  error
	)

	switch action {
	case "advance":
		snap, err = h.service.AdvanceSession(r.Context(), claims.TenantID, id)
	case "pause":
		snap, err = h.service.PauseSession(r.Context(), claims.TenantID, id)
	case "resume":
		snap, err = h.service.ResumeSession(r.Context(), claims.TenantID, id)
	case "reset":
		snap, err = h.service.ResetSession(r.Context(), claims.TenantID, id)
	case "jump":
		var req JumpRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
		snap, err = h.service.JumpSession(r.Context(), claims.TenantID, id, req.Index)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown session action")
		return
	}

	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotView(snap))
}

func (h *Handler) abandonSession(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeSessionsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sessions:write required")
		return
	}

	if err := h.service.AbandonSession(r.Context(), claims.TenantID, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireRead(w, r)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursorToken := r.URL.Query().Get("cursor")
	cursor, err := persistence.DecodeCursor(cursorToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	aggregates, next, err := h.service.ListSessionsByUser(r.Context(), claims.TenantID, userID, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]SessionView, 0, len(aggregates))
	for _, agg := range aggregates {
		items = append(items, toSessionView(agg))
	}

	resp := ListSessionsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) sessionMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := requireRead(w, r)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if strings.TrimSpace(userID) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return
	}

	timelineLimit := 10
	if raw := r.URL.Query().Get("timeline_limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 50 {
				parsed = 50
			}
			timelineLimit = parsed
		}
	}

	windowHours := 24 * 7
	if raw := r.URL.Query().Get("window_hours"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			windowHours = parsed
		}
	}

	window := time.Duration(windowHours) * time.Hour
	metrics, err := h.service.GetSessionMetrics(r.Context(), claims.TenantID, userID, window, timelineLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	summary := metrics.Summary
	resp := SessionMetricsResponse{
		Summary: SessionMetricsSummary{
			Total:                 summary.Total,
			Active:                summary.Active,
			Completed:             summary.Completed,
			Abandoned:             summary.Abandoned,
			AveragePlannedMinutes: summary.AveragePlannedMinutes,
			AverageActualMinutes:  summary.AverageActualMinutes,
			CompletionRate:        summary.CompletionRate,
			LastSessionAt:         summary.LastSessionAt,
		},
		WindowSeconds: metrics.WindowSeconds,
		TimelineLimit: timelineLimit,
		Timeline:      make([]SessionView, 0, len(metrics.Timeline)),
	}

	for _, agg := range metrics.Timeline {
		resp.Timeline = append(resp.Timeline, toSessionView(agg))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) listPresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := requireRead(w, r); !ok {
		return
	}

	presets := h.presets.List()
	items := make([]PresetView, 0, len(presets))
	for _, p := range presets {
		items = append(items, toPresetView(p))
	}
	writeJSON(w, http.StatusOK, ListPresetsResponse{Items: items})
}

func (h *Handler) getPreset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := requireRead(w, r); !ok {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/presets/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing preset id")
		return
	}

	p, ok := h.presets.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "preset not found")
		return
	}
	writeJSON(w, http.StatusOK, toPresetView(p))
}

func requireRead(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(auth.ScopeSessionsRead) && !claims.HasScope(auth.ScopeSessionsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope sessions:read required")
		return nil, false
	}
	return claims, true
}

// StartSessionRequest is the payload for POST /v1/sessions. Either a
// preset id or an inline list of phases describes the content.
type StartSessionRequest struct {
	UserID     string               `json:"user_id"`
	PresetID   string               `json:"preset_id,omitempty"`
	RitualName string               `json:"ritual_name,omitempty"`
	Phases     []ritual.ActivityDef `json:"phases,omitempty"`
}

// Validate ensures request correctness.
func (r StartSessionRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if r.PresetID == "" && len(r.Phases) == 0 {
		return errors.New("preset_id or phases is required")
	}
	if r.PresetID != "" && len(r.Phases) > 0 {
		return errors.New("preset_id and phases are mutually exclusive")
	}
	return nil
}

// JumpRequest is the payload for POST /v1/sessions/{id}/jump.
type JumpRequest struct {
	Index int `json:"index"`
}

// StartSessionResponse describes the response body for session creation.
type StartSessionResponse struct {
	SessionID string       `json:"session_id"`
	Status    string       `json:"status"`
	Replay    bool         `json:"idempotent_replay"`
	Snapshot  SnapshotView `json:"snapshot"`
}

// SessionView exposes the stored session record.
type SessionView struct {
	SessionID          string     `json:"session_id"`
	TenantID           string     `json:"tenant_id"`
	UserID             string     `json:"user_id"`
	RitualID           string     `json:"ritual_id"`
	RitualName         string     `json:"ritual_name"`
	Source             string     `json:"source"`
	PhaseCount         int        `json:"phase_count"`
	PlannedDurationSec int        `json:"planned_duration_sec"`
	ActualDurationSec  int        `json:"actual_duration_sec"`
	Status             string     `json:"status"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	Version            string     `json:"version"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// SnapshotView exposes the live position of an in-flight session.
type SnapshotView struct {
	SessionID    string       `json:"session_id"`
	State        string       `json:"state"`
	RemainingSec int          `json:"remaining_sec"`
	Progress     ProgressView `json:"progress"`
	Phase        *PhaseView   `json:"phase,omitempty"`
}

// ProgressView mirrors the per-phase progress report.
type ProgressView struct {
	CompletedCount  int              `json:"completed_count"`
	CurrentIndex    int              `json:"current_index"`
	TotalCount      int              `json:"total_count"`
	PercentComplete float64          `json:"percent_complete"`
	Items           []ItemStatusView `json:"items"`
}

// ItemStatusView reports the state of one phase in the sequence.
type ItemStatusView struct {
	PhaseID string `json:"phase_id"`
	State   string `json:"state"`
}

// PhaseView describes the currently running phase.
type PhaseView struct {
	ID          string                     `json:"id"`
	Type        string                     `json:"type"`
	Name        string                     `json:"name"`
	Description string                     `json:"description,omitempty"`
	DurationSec int                        `json:"duration_sec"`
	Tone        string                     `json:"tone,omitempty"`
	Role        string                     `json:"role,omitempty"`
	Breathing   *sequence.BreathingPattern `json:"breathing,omitempty"`
	Steps       []string                   `json:"steps,omitempty"`
	Prompt      string                     `json:"prompt,omitempty"`
}

// ListSessionsResponse packages list results.
type ListSessionsResponse struct {
	Items      []SessionView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// SessionMetricsSummary describes aggregate stats for a user's sessions.
type SessionMetricsSummary struct {
	Total                 int        `json:"total"`
	Active                int        `json:"active"`
	Completed             int        `json:"completed"`
	Abandoned             int        `json:"abandoned"`
	AveragePlannedMinutes float64    `json:"average_planned_minutes"`
	AverageActualMinutes  float64    `json:"average_actual_minutes"`
	CompletionRate        float64    `json:"completion_rate"`
	LastSessionAt         *time.Time `json:"last_session_at,omitempty"`
}

// SessionMetricsResponse merges summary metrics with recent timeline entries.
type SessionMetricsResponse struct {
	Summary       SessionMetricsSummary `json:"summary"`
	Timeline      []SessionView         `json:"timeline"`
	TimelineLimit int                   `json:"timeline_limit"`
	WindowSeconds int64                 `json:"window_seconds"`
}

// ListPresetsResponse packages the preset catalog listing.
type ListPresetsResponse struct {
	Items []PresetView `json:"items"`
}

// PresetView exposes a catalog preset.
type PresetView struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description,omitempty"`
	Tone             string            `json:"tone,omitempty"`
	TotalDurationSec int               `json:"total_duration_sec"`
	Phases           []PresetPhaseView `json:"phases"`
}

// PresetPhaseView exposes one phase of a preset.
type PresetPhaseView struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Role        string `json:"role,omitempty"`
	Title       string `json:"title"`
	DurationSec int    `json:"duration_sec"`
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, domain.ErrSessionNotLive):
		writeError(w, http.StatusNotFound, "not_found", "session is not live")
	case errors.Is(err, domain.ErrUnknownPreset):
		writeError(w, http.StatusBadRequest, "validation_failed", "unknown preset")
	case errors.Is(err, sequence.ErrAlreadyComplete):
		writeError(w, http.StatusConflict, "conflict", "session already complete")
	case errors.Is(err, sequence.ErrNotStarted):
		writeError(w, http.StatusConflict, "conflict", "session not started")
	case errors.Is(err, sequence.ErrInvalidIndex):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, sequence.ErrInvalidSequence):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toSessionView(agg domain.SessionAggregate) SessionView {
	return SessionView{
		SessionID:          agg.ID,
		TenantID:           agg.TenantID,
		UserID:             agg.UserID,
		RitualID:           agg.RitualID,
		RitualName:         agg.RitualName,
		Source:             agg.Source,
		PhaseCount:         agg.PhaseCount,
		PlannedDurationSec: agg.PlannedDurationSec,
		ActualDurationSec:  agg.ActualDurationSec,
		Status:             string(agg.State),
		StartedAt:          agg.StartedAt,
		CompletedAt:        agg.CompletedAt,
		Version:            agg.Version,
		CreatedAt:          agg.CreatedAt,
		UpdatedAt:          agg.UpdatedAt,
	}
}

func toSnapshotView(snap sequence.Snapshot) SnapshotView {
	view := SnapshotView{
		SessionID:    snap.SequenceID,
		State:        string(snap.State),
		RemainingSec: snap.RemainingSec,
		Progress: ProgressView{
			CompletedCount:  snap.Progress.CompletedCount,
			CurrentIndex:    snap.Progress.CurrentIndex,
			TotalCount:      snap.Progress.TotalCount,
			PercentComplete: snap.Progress.PercentComplete,
			Items:           make([]ItemStatusView, 0, len(snap.Progress.Items)),
		},
	}
	for _, item := range snap.Progress.Items {
		view.Progress.Items = append(view.Progress.Items, ItemStatusView{
			PhaseID: item.ActivityID,
			State:   string(item.State),
		})
	}
	if snap.Activity != nil {
		view.Phase = &PhaseView{
			ID:          snap.Activity.ID,
			Type:        string(snap.Activity.Type),
			Name:        snap.Activity.Name,
			Description: snap.Activity.Description,
			DurationSec: snap.Activity.DurationSec,
			Tone:        snap.Activity.Tone,
			Role:        string(snap.Activity.Role),
			Breathing:   snap.Activity.Breathing,
			Steps:       snap.Activity.Steps,
			Prompt:      snap.Activity.Prompt,
		}
	}
	return view
}

func toPresetView(p preset.Preset) PresetView {
	view := PresetView{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		Tone:             p.Tone,
		TotalDurationSec: p.TotalDurationSec(),
		Phases:           make([]PresetPhaseView, 0, len(p.Phases)),
	}
	for _, phase := range p.Phases {
		view.Phases = append(view.Phases, PresetPhaseView{
			ID:          phase.ID,
			Type:        string(phase.Type),
			Role:        string(phase.Role),
			Title:       phase.Title,
			DurationSec: phase.DurationSec,
		})
	}
	return view
}
