package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kalambet/lumina/internal/auth"
	"github.com/kalambet/lumina/internal/concierge"
	"github.com/kalambet/lumina/internal/flow"
	"github.com/kalambet/lumina/internal/storage"
	"github.com/kalambet/lumina/internal/vault"
)

const maxRequestBodySize = 1 << 20 // 1MB

// maxContactBodySize leaves room for a base64 business plan attachment.
const maxContactBodySize = 8 << 20 // 8MB

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// decodeBody reads a JSON body of at most limit bytes into v. On failure it
// writes the error response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

// domainError maps module errors onto HTTP statuses.
func domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, flow.ErrInvalidInput), errors.Is(err, vault.ErrInvalidSession):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, flow.ErrBusy), errors.Is(err, concierge.ErrBusy),
		errors.Is(err, flow.ErrAbandoned), errors.Is(err, flow.ErrInvalidTransition):
		httpError(w, http.StatusConflict, "conflict_error", "%v", err)
	case errors.Is(err, storage.ErrQuotaExceeded):
		httpError(w, http.StatusInsufficientStorage, "storage_error", "%v", err)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		httpError(w, http.StatusUnauthorized, "authentication_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

// eventStream writes server-sent events.
type eventStream struct {
	w http.ResponseWriter
	f http.Flusher
}

func newEventStream(w http.ResponseWriter) (*eventStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventStream{w: w, f: flusher}, true
}

func (s *eventStream) send(event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

func (s *eventStream) fail(err error) {
	s.send("error", map[string]any{
		"error": map[string]any{
			"message": err.Error(),
			"type":    "server_error",
		},
	})
}
