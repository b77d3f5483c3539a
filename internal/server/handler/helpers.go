// Package handler implements the HTTP API: instrument selection, metrics
// snapshots, replay control, and the historical query contract.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// writeJSON marshals v as JSON and writes it with the given status code.
// If marshaling fails it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseStartAt accepts either an RFC 3339 timestamp or raw Unix
// milliseconds and returns Unix milliseconds.
func parseStartAt(v string) (int64, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UnixMilli(), nil
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, err
	}
	return ms, nil
}
