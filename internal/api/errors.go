package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"venueflow/internal/apperr"
)

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Error: APIError{Code: code, Message: message},
	})
}

// WriteAppError maps core errors onto the envelope. Anything that is not an
// *apperr.Error is logged and reported as INTERNAL.
func WriteAppError(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Printf("internal error: %v", err)
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch ae.Kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindPermissionDenied:
		status = http.StatusForbidden
	case apperr.KindNotReady, apperr.KindInvalidState:
		status = http.StatusConflict
	case apperr.KindValidation:
		status = http.StatusBadRequest
	}
	WriteError(w, status, string(ae.Kind), ae.Message)
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
