package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/clinicportal/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeOK(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Message: message})
}

func writeCreated(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, Message: message})
}

// writeError maps err to a status code. Internal failures answer with the
// per-endpoint fallback message; the cause only goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()

	message := apperr.Message(err, fallback)
	if kind == apperr.KindInternal || kind == apperr.KindNetwork {
		status = http.StatusInternalServerError
		message = fallback
		log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg(LogRequestFailed)
	} else {
		log.Warn().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("kind", kind.String()).
			Msg(LogRequestFailed)
	}

	writeJSON(w, status, Envelope{Success: false, Error: message})
}

// decodeJSON reads a bounded request body into dst. An empty body leaves
// dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Wrap(apperr.KindValidation, err, ErrInvalidJSON)
	}
	return nil
}
