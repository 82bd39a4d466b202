// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/testboss/testboss/pkg/observability"
)

// MessageBody is the body shape of every error response
type MessageBody struct {
	Message string `json:"message"`
}

// PageBody is the body shape of paginated list responses
type PageBody struct {
	List  interface{} `json:"list"`
	Total int         `json:"total"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WritePage writes a paginated list with its total count
func WritePage(w http.ResponseWriter, list interface{}, total int) error {
	return WriteJSON(w, http.StatusOK, PageBody{List: list, Total: total})
}

// WriteErrorMessage writes an error body for the given status code,
// rendered in the canonical "Error <Status>: <msg>." form
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(MessageBody{
		Message: FormatMessage(status, message),
	})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a forbidden error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteNotFound writes a not found error (404)
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteAPIError logs err and writes its taxonomy mapping. Internal
// failures are logged at error severity, the rest as warnings.
func WriteAPIError(w http.ResponseWriter, logger *observability.Logger, err error) {
	apiErr := AsError(err)
	if logger != nil {
		entry := logger.WithField("status", apiErr.Kind.Status())
		if apiErr.Err != nil {
			entry = entry.WithError(apiErr.Err)
		}
		if apiErr.Kind == Internal {
			entry.Error(apiErr.Message)
		} else {
			entry.Warn(apiErr.Message)
		}
	}
	WriteErrorMessage(w, apiErr.Kind.Status(), apiErr.Message)
}
