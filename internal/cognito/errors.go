package cognito

import (
	"errors"
	"net/http"
)

var (
	ErrUserAlreadyExists     = errors.New("user already exists")
	ErrUserNotFound          = errors.New("user not found")
	ErrUserNotConfirmed      = errors.New("user not confirmed")
	ErrInvalidPassword       = errors.New("invalid password")
	ErrInvalidCode           = errors.New("invalid code")
	ErrCodeExpired           = errors.New("code expired")
	ErrTooManyRequests       = errors.New("too many requests")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrLimitExceeded         = errors.New("limit exceeded")
	ErrPasswordResetRequired = errors.New("password reset required")
	ErrInvalidParameter      = errors.New("invalid parameter")
	ErrChallengeRequired     = errors.New("additional auth challenge required")
)

// ErrorInfo is the HTTP status and error code a Cognito failure maps to.
type ErrorInfo struct {
	Status int
	Code   string
}

var errorInfos = []struct {
	err  error
	info ErrorInfo
}{
	{ErrUserAlreadyExists, ErrorInfo{http.StatusConflict, "USER_ALREADY_EXISTS"}},
	{ErrUserNotFound, ErrorInfo{http.StatusNotFound, "USER_NOT_FOUND"}},
	{ErrUserNotConfirmed, ErrorInfo{http.StatusForbidden, "USER_NOT_CONFIRMED"}},
	{ErrInvalidPassword, ErrorInfo{http.StatusBadRequest, "INVALID_PASSWORD"}},
	{ErrInvalidCode, ErrorInfo{http.StatusBadRequest, "INVALID_CODE"}},
	{ErrCodeExpired, ErrorInfo{http.StatusBadRequest, "CODE_EXPIRED"}},
	{ErrTooManyRequests, ErrorInfo{http.StatusTooManyRequests, "TOO_MANY_REQUESTS"}},
	{ErrNotAuthorized, ErrorInfo{http.StatusUnauthorized, "NOT_AUTHORIZED"}},
	{ErrLimitExceeded, ErrorInfo{http.StatusTooManyRequests, "LIMIT_EXCEEDED"}},
	{ErrPasswordResetRequired, ErrorInfo{http.StatusForbidden, "PASSWORD_RESET_REQUIRED"}},
	{ErrInvalidParameter, ErrorInfo{http.StatusBadRequest, "INVALID_PARAMETER"}},
	{ErrChallengeRequired, ErrorInfo{http.StatusConflict, "CHALLENGE_REQUIRED"}},
	{ErrNotConfigured, ErrorInfo{http.StatusServiceUnavailable, "AUTH_NOT_CONFIGURED"}},
}

// LookupError reports the ErrorInfo for err if it wraps one of the sentinels.
func LookupError(err error) (ErrorInfo, bool) {
	for _, e := range errorInfos {
		if errors.Is(err, e.err) {
			return e.info, true
		}
	}
	return ErrorInfo{}, false
}
