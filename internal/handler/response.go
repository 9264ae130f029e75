// Package handler is the HTTP layer: it parses requests, calls a service
// and writes JSON. No business rules live here.
package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// WHY HELPERS?
// Without helpers, every handler repeats the same boilerplate:
//   w.Header().Set("Content-Type", "application/json")
//   w.WriteHeader(statusCode)
//   json.NewEncoder(w).Encode(data)
//
// With helpers, handlers are cleaner and more consistent:
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "post not found with id abc123"}
//
// Validation errors may add "field" and a "details" list. "message" is
// always present, so a client can show it without knowing the code.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/portfolio/internal/apperror"
	"github.com/sakif/portfolio/internal/entitlement"
	"github.com/sakif/portfolio/internal/validate"
)

// MaxBodyBytes caps JSON request bodies. The webhook has its own limit.
const MaxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string            `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string            `json:"message"` // Human-readable description
	Field   string            `json:"field,omitempty"`
	Details []apperror.Detail `json:"details,omitempty"`
}

// lockedPostResponse is the 403 body for a premium post the caller may not
// read: the teaser fields plus the usual error and message, so a client can
// render the post header and a subscribe prompt from one response.
type lockedPostResponse struct {
	entitlement.RedactedPost
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// You MUST set headers and status code BEFORE writing the body.
// Once you call w.Write() (which Encode does internally), the headers are sent.
// Any header changes after that are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// If encoding fails, the headers are already sent, so we can only log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeMessage is the {"message": "..."} body used by several endpoints.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// statusFor maps a domain error to its HTTP status and error code.
//
// WHY HERE AND NOT IN THE SERVICE?
// The service layer should not know about HTTP status codes. The CLI
// calls the same services and prints the message instead.
//
// errors.Is() walks the whole chain, so a service may wrap an AppError
// with fmt.Errorf("...: %w", err) and the mapping still finds it.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrSubscriptionRequired):
		return http.StatusForbidden, "subscription_required"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// Only an *apperror.AppError carries a message meant for users. Anything
// else is an internal failure: it is logged with its full chain and the
// client gets a generic 500. Raw error text might contain SQL, file paths
// or provider responses.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, code := statusFor(err)
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: appErr.Message,
		Field:   appErr.Field,
		Details: appErr.Details,
	})
}

// writeLocked sends the 403 teaser for a premium post.
func writeLocked(w http.ResponseWriter, teaser entitlement.RedactedPost, err error) {
	message := "A premium subscription is required to read this article"
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	writeJSON(w, http.StatusForbidden, lockedPostResponse{
		RedactedPost: teaser,
		Error:        "subscription_required",
		Message:      message,
	})
}

// decodeBody reads a JSON body of at most MaxBodyBytes, checks it against
// the named schema and fills dst.
func decodeBody(r *http.Request, v *validate.Validator, schema validate.Schema, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperror.ValidationFailed("body", "request body too large")
		}
		return apperror.ValidationFailed("body", "could not read request body")
	}
	return v.Decode(schema, body, dst)
}

// queryBool parses an optional boolean query parameter. Absent or
// unparseable values are treated as "no filter".
func queryBool(r *http.Request, key string) *bool {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}
