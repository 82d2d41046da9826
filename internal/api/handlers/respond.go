package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/isdelr/nukta-be/internal/apperror"
	"github.com/rs/zerolog/log"
)

// envelope is the shape of every API response body.
type envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Stack   string   `json:"stack,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// ErrorResponder renders errors as the failure envelope. With Debug set the
// full error chain is included as "stack".
type ErrorResponder struct {
	Debug bool
}

func NewErrorResponder(debug bool) *ErrorResponder {
	return &ErrorResponder{Debug: debug}
}

// Write maps err to its status code and writes the failure envelope.
func (e *ErrorResponder) Write(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.From(err)
	status := appErr.StatusCode()

	event := log.Debug()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("kind", appErr.Kind.String()).
		Int("status", status).
		Msg("Request failed")

	body := envelope{Success: false, Message: appErr.Message, Errors: appErr.Details}
	if e.Debug {
		body.Stack = err.Error()
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON request body of at most 1MB into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.NewValidation("Request body too large")
		}
		return apperror.New(apperror.Validation, "Invalid request body", err)
	}
	return nil
}
