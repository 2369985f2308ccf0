package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type errorBody struct {
	Error string `json:"error"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write json response", "error", err)
	}
}

// RawJSON writes an already encoded body, such as a cached bracket.
func RawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write json response", "error", err)
	}
}

const maxBodyBytes = 1 << 20

// DecodeJSON reads a single JSON object from the request body.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func JSONError(w http.ResponseWriter, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error(msg, "error", err)
		msg = http.StatusText(status)
	} else if err != nil {
		slog.Warn("request failed", "status", status, "message", msg, "error", err)
	}
	JSON(w, status, errorBody{Error: msg})
}
