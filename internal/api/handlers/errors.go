package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/spend-signals/internal/analytics"
	"github.com/dvloznov/spend-signals/internal/api/middleware"
	"github.com/dvloznov/spend-signals/internal/history"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// statusFor maps a scoring error to an HTTP status.
func statusFor(err error) int {
	switch {
	case analytics.IsInputError(err), errors.Is(err, history.ErrInvalidUserID):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, analytics.ErrEmptyHistory):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeScoringError writes err with the matching status. Client errors keep
// their message; server errors are logged and hidden.
func writeScoringError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
		middleware.WriteError(w, status, msg)
		return
	}
	log.Warn().Err(err).Int("status", status).Msg(msg)
	middleware.WriteError(w, status, err.Error())
}

// decodeJSON decodes a request body keeping numbers as json.Number.
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return fmt.Errorf("request body too large")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
