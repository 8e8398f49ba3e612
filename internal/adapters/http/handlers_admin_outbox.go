package web

import (
	"net/http"
	"time"

	"gymdesk/internal/domain/outbox"
)

// outboxEntryView is the admin JSON form of an outbox entry.
type outboxEntryView struct {
	ID              string     `json:"id"`
	ActionType      string     `json:"action_type"`
	Payload         string     `json:"payload"`
	Status          string     `json:"status"`
	Attempts        int        `json:"attempts"`
	MaxAttempts     int        `json:"max_attempts"`
	LastAttemptedAt *time.Time `json:"last_attempted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExternalID      string     `json:"external_id,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

func newOutboxEntryView(e outbox.Entry) outboxEntryView {
	v := outboxEntryView{
		ID:           e.ID,
		ActionType:   e.ActionType,
		Payload:      e.Payload,
		Status:       e.Status,
		Attempts:     e.Attempts,
		MaxAttempts:  e.MaxAttempts,
		CreatedAt:    e.CreatedAt,
		ExternalID:   e.ExternalID,
		ErrorMessage: e.ErrorMessage,
	}
	if !e.LastAttemptedAt.IsZero() {
		at := e.LastAttemptedAt
		v.LastAttemptedAt = &at
	}
	return v
}

// handleAdminOutboxList lists outbox entries.
// Query: status=failed (default) | pending, action_type=receipt_email|event_notify, limit (max 100).
func (s *Server) handleAdminOutboxList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := intQuery(r, "limit", 50, 100)
	status := r.URL.Query().Get("status")
	actionType := r.URL.Query().Get("action_type")

	var entries []outbox.Entry
	var err error
	switch {
	case actionType != "":
		entries, err = s.stores.OutboxStore.ListByActionType(ctx, actionType, status, limit)
	case status == "pending":
		entries, err = s.stores.OutboxStore.ListPending(ctx, limit)
	case status == "" || status == outbox.StatusFailed:
		entries, err = s.stores.OutboxStore.ListFailed(ctx, limit)
	default:
		badRequest(w, "status must be failed or pending")
		return
	}
	if err != nil {
		internalError(w, err)
		return
	}

	views := make([]outboxEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newOutboxEntryView(e))
	}
	writeJSON(w, http.StatusOK, views)
}

// handleAdminOutboxRetry attempts one entry now, ignoring backoff.
func (s *Server) handleAdminOutboxRetry(w http.ResponseWriter, r *http.Request) {
	if s.opts.Outbox == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "outbox processor not configured"})
		return
	}
	entry, err := s.opts.Outbox.ProcessSingle(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOutboxEntryView(entry))
}

func (s *Server) handleAdminOutboxAbandon(w http.ResponseWriter, r *http.Request) {
	if s.opts.Outbox == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "outbox processor not configured"})
		return
	}
	if err := s.opts.Outbox.AbandonEntry(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": r.PathValue("id"), "status": outbox.StatusAbandoned})
}

// handleAdminPerf reports request and query timings; ?window=15m (default 1h), ?top=10.
func (s *Server) handleAdminPerf(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "perf collector not configured"})
		return
	}
	window := time.Hour
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			badRequest(w, "window must be a positive duration such as 15m")
			return
		}
		window = d
	}
	top := intQuery(r, "top", 10, 100)
	writeJSON(w, http.StatusOK, s.collector.Snapshot(time.Now().Add(-window), top))
}
