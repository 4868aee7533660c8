package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xraph/greenscore"
)

// Error codes carried in the error envelope.
const (
	codeUnauthorized    = "unauthorized"
	codeInvalidRequest  = "invalid_request"
	codeValidation      = "validation_failed"
	codeAlreadyVerified = "already_verified"
	codeNotFound        = "not_found"
	codeOverflow        = "emission_overflow"
	codeUnavailable     = "unavailable"
	codeInternal        = "internal"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorEnvelope wraps APIError as {"error": {...}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{
		Message:   msg,
		Code:      code,
		RequestID: c.GetString(ctxRequestID),
	}})
}

// statusFor maps a ledger error to an HTTP status and error code. Overflow
// is checked before the generic validation case because it is one.
func statusFor(err error) (int, string) {
	switch {
	case greenscore.IsAuthError(err):
		return http.StatusUnauthorized, codeUnauthorized
	case errors.Is(err, greenscore.ErrEmissionOverflow):
		return http.StatusUnprocessableEntity, codeOverflow
	case errors.Is(err, greenscore.ErrAlreadyVerified):
		return http.StatusConflict, codeAlreadyVerified
	case greenscore.IsNotFound(err):
		return http.StatusNotFound, codeNotFound
	case greenscore.IsValidationError(err):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, greenscore.ErrStoreClosed), greenscore.IsRetryable(err):
		return http.StatusServiceUnavailable, codeUnavailable
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	_ = c.Error(err)
	abort(c, status, code, msg)
}
