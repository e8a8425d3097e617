package server

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	Message string `json:"message"`

	// Type categorizes the error (see the ErrorType constants).
	Type string `json:"type"`

	// Param names the offending field or scene section, if any.
	Param string `json:"param,omitempty"`

	// Index is the position of the offending statement within Param.
	Index *int `json:"index,omitempty"`
}

// Error types.
const (
	ErrorTypeInvalidRequest     = "invalid_request_error"
	ErrorTypeInvalidScene       = "invalid_scene_error"
	ErrorTypeAuthentication     = "authentication_error"
	ErrorTypeNotFound           = "not_found"
	ErrorTypeMethodNotAllowed   = "method_not_allowed"
	ErrorTypeRequestTooLarge    = "request_too_large"
	ErrorTypeServerError        = "server_error"
	ErrorTypeServiceUnavailable = "service_unavailable"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errType, message string) {
	writeJSON(w, code, ErrorResponse{Error: ErrorDetail{Message: message, Type: errType}})
}
