// Package httpx holds the JSON and error-envelope helpers shared by Kite's handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// Error codes used in the envelope.
const (
	CodeUnauthenticated    = "unauthenticated"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeInvalidJSON        = "invalid_json"
	CodeInvalidRequest     = "invalid_request"
	CodeConflict           = "conflict"
	CodeInvalidCredentials = "invalid_credentials"
	CodeRateLimited        = "rate_limited"
	CodeServerError        = "server_error"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// WriteJSON writes v with status. Responses are never cached.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error":{"code":...,"message":...}}.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

// WriteNotFound is the single body for missing and not-owned resources.
func WriteNotFound(w http.ResponseWriter) {
	WriteError(w, http.StatusNotFound, CodeNotFound, "not found")
}

// WriteInternal logs err under event and writes a generic 500.
func WriteInternal(w http.ResponseWriter, log *slog.Logger, event string, err error) {
	if log != nil {
		log.Error(event, "err", err)
	}
	WriteError(w, http.StatusInternalServerError, CodeServerError, "internal error")
}

// WriteRateLimited writes the 429 body; Retry-After is set by the limiter.
func WriteRateLimited(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, "too many attempts")
}

// DecodeJSON decodes exactly one JSON object into dst, rejecting unknown fields
// and bodies above maxBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}

// DecodeOrReject decodes like DecodeJSON and writes a 400 on failure.
func DecodeOrReject(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) bool {
	if err := DecodeJSON(w, r, maxBytes, dst); err != nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidJSON, "invalid request body")
		return false
	}
	return true
}
