package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	outboxStore "gymdesk/internal/adapters/storage/outbox"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/outbox"
	"gymdesk/internal/domain/payment"
	"gymdesk/internal/domain/plan"
	"gymdesk/internal/domain/receipt"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", "error", err.Error())
	}
}

// internalError logs the cause and hides it from the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

// writeError maps domain and orchestrator errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var ve *payment.ValidationError
	var de *plan.InvalidDateError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Field: ve.Field})
	case errors.As(err, &de):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: de.Error(), Field: de.Field})
	case orchestrators.IsNotFound(err), errors.Is(err, outboxStore.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, receipt.ErrNotCurrentVersion),
		errors.Is(err, orchestrators.ErrOutstandingDue),
		errors.Is(err, member.ErrAlreadyArchived),
		errors.Is(err, member.ErrNotArchived),
		errors.Is(err, outbox.ErrInvalidStatus):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	default:
		internalError(w, err)
	}
}

// badRequest reports a malformed request body or query.
func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// optionalDecode is strictDecode for endpoints whose body may be empty.
func optionalDecode(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := strictDecode(w, r, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// intQuery parses a positive integer query parameter, falling back to def.
func intQuery(r *http.Request, key string, def, maxVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if maxVal > 0 && n > maxVal {
		return maxVal
	}
	return n
}

// moneyQuery parses an optional minor-unit amount; absent yields nil.
func moneyQuery(r *http.Request, key string) (*int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, payment.Invalid(key, "must be a whole number")
	}
	return &n, nil
}
