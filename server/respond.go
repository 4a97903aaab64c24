package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"
)

// timestampLayout renders ISO-8601 UTC timestamps with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// errorBody is the JSON envelope of every error response.
type errorBody struct {
	Error      string            `json:"error"`
	Details    map[string]string `json:"details,omitempty"`
	RetryAfter *int              `json:"retryAfter,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorBody{Error: msg})
}
