package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// errorBody is the shape of every non-2xx response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http: encode response", "status", status, "error", err)
	}
}

// WriteError writes msg with the standard reason phrase for status.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorBody{
		Error:   http.StatusText(status),
		Message: msg,
	})
}
