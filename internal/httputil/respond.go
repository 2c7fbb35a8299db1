// Package httputil holds the JSON response helpers shared by the API
// handlers and middleware.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/appstack-labs/marketplace/internal/apperr"
)

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps err through the error taxonomy and writes the
// standard error body.
func WriteError(w http.ResponseWriter, err error) {
	status := apperr.Status(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	WriteJSON(w, status, ErrorBody{Error: msg, Code: string(apperr.KindOf(err))})
}

// WriteErrorMessage writes an ad-hoc error with an explicit status and
// code.
func WriteErrorMessage(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg, Code: code})
}
