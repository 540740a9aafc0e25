package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jaekwang-park/tasksync/internal/cognito"
	"github.com/jaekwang-park/tasksync/internal/service"
)

const maxBodySize = 1 << 20 // 1 MB

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
		},
	})
}

// decodeJSON reads a bounded request body into v and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// handleServiceError maps the service error taxonomy to HTTP responses.
// Internal details are logged, never returned.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if info, ok := cognito.LookupError(err); ok {
		slog.WarnContext(r.Context(), "auth error", "code", info.Code, "error", err)
		WriteError(w, info.Status, info.Code, cognitoErrorMessage(info.Code))
		return
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, service.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, service.ErrNoSession):
		WriteError(w, http.StatusUnauthorized, "NO_SESSION", "no active session")
	case errors.Is(err, service.ErrStoreUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "local store is not ready")
	case errors.Is(err, service.ErrRemoteWrite):
		slog.ErrorContext(r.Context(), "remote write failed", "error", err)
		WriteError(w, http.StatusBadGateway, "REMOTE_WRITE_FAILED", "remote store rejected the changes")
	case errors.Is(err, service.ErrQueueExhausted):
		slog.WarnContext(r.Context(), "mutations abandoned", "error", err)
		WriteError(w, http.StatusBadGateway, "QUEUE_EXHAUSTED", "some queued changes were abandoned after repeated failures")
	default:
		slog.ErrorContext(r.Context(), "internal error", "error", err)
		WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

var cognitoMessages = map[string]string{
	"USER_ALREADY_EXISTS":     "a user with this email already exists",
	"USER_NOT_FOUND":          "user not found",
	"USER_NOT_CONFIRMED":      "email address not confirmed",
	"INVALID_PASSWORD":        "password does not meet requirements",
	"INVALID_CODE":            "invalid verification code",
	"CODE_EXPIRED":            "verification code has expired",
	"TOO_MANY_REQUESTS":       "too many requests, please try again later",
	"NOT_AUTHORIZED":          "incorrect email or password",
	"LIMIT_EXCEEDED":          "attempt limit exceeded, please try again later",
	"PASSWORD_RESET_REQUIRED": "password reset is required",
	"INVALID_PARAMETER":       "invalid request parameter",
	"CHALLENGE_REQUIRED":      "additional sign-in challenge required",
	"AUTH_NOT_CONFIGURED":     "account sign-in is not configured on this device",
}

func cognitoErrorMessage(code string) string {
	if msg, ok := cognitoMessages[code]; ok {
		return msg
	}
	return "an error occurred"
}
