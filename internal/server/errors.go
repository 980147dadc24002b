package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	accountdomain "github.com/autogenlabs-dev/tokengate/internal/account/domain"
	apikeydomain "github.com/autogenlabs-dev/tokengate/internal/apikey/domain"
	"github.com/autogenlabs-dev/tokengate/internal/auth"
	"github.com/autogenlabs-dev/tokengate/internal/provider"
	"github.com/autogenlabs-dev/tokengate/internal/proxy"
	quotadomain "github.com/autogenlabs-dev/tokengate/internal/quota/domain"
)

// APIError is the wire shape of every error response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Code + ": " + e.Message }

var (
	ErrUnauthorized = &APIError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "missing or invalid credential"}
	ErrForbidden    = &APIError{Status: http.StatusForbidden, Code: "forbidden", Message: "access denied"}
	ErrNotFound     = &APIError{Status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}
)

func invalidRequestError() *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "request body could not be parsed"}
}

func newValidationError(field, rule, message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "validation_error",
		Message: fmt.Sprintf("%s (%s %s)", message, field, rule),
	}
}

// AbortWithError funnels every handler failure through one mapping so
// the taxonomy stays consistent across the surface.
func AbortWithError(c *gin.Context, err error) {
	apiErr := classifyError(err)

	var rl *proxy.RateLimitedError
	if errors.As(err, &rl) {
		c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
	}

	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
}

func classifyError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var rl *proxy.RateLimitedError
	if errors.As(err, &rl) {
		return &APIError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: rl.Error()}
	}

	switch {
	case errors.Is(err, quotadomain.ErrQuotaExceeded):
		return &APIError{Status: http.StatusPaymentRequired, Code: "quota_exceeded", Message: "quota exhausted for this billing period"}
	case errors.Is(err, quotadomain.ErrAccountInactive), errors.Is(err, accountdomain.ErrDeactivated):
		return &APIError{Status: http.StatusForbidden, Code: "account_deactivated", Message: "account is deactivated"}
	case errors.Is(err, provider.ErrMalformedModel):
		return &APIError{Status: http.StatusBadRequest, Code: "malformed_model", Message: "model must be vendor-prefixed, e.g. openai/gpt-4o"}
	case errors.Is(err, provider.ErrUnknownVendor):
		return &APIError{Status: http.StatusBadRequest, Code: "unknown_vendor", Message: "no such vendor is configured"}
	case provider.IsRejected(err):
		return &APIError{Status: http.StatusBadGateway, Code: "provider_rejected", Message: "upstream vendor rejected the request"}
	case provider.IsTransient(err):
		return &APIError{Status: http.StatusBadGateway, Code: "provider_unavailable", Message: "upstream vendor unavailable, try again"}
	case errors.Is(err, quotadomain.ErrReservationNotFound), errors.Is(err, quotadomain.ErrReservationResolved):
		return &APIError{Status: http.StatusInternalServerError, Code: "internal_inconsistency", Message: "request could not be reconciled"}
	case errors.Is(err, accountdomain.ErrNotFound), errors.Is(err, apikeydomain.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return &APIError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "something went wrong"}
	}
}

// authFailure maps a credential verification error to a 401 with a
// distinct code, so an expired token and an unknown signing key stay
// distinguishable to clients and logs.
func authFailure(err error) *APIError {
	code := "unauthorized"
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		code = "token_expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		code = "token_not_yet_valid"
	case errors.Is(err, auth.ErrUnknownKeyID):
		code = "unknown_key_id"
	case errors.Is(err, auth.ErrUnknownIssuer):
		code = "unknown_issuer"
	case errors.Is(err, auth.ErrWrongAudience):
		code = "wrong_audience"
	case errors.Is(err, auth.ErrBadSignature):
		code = "bad_signature"
	case errors.Is(err, auth.ErrMalformedToken), errors.Is(err, auth.ErrNoCredential):
		code = "malformed_credential"
	case errors.Is(err, apikeydomain.ErrRevoked):
		code = "key_revoked"
	case errors.Is(err, apikeydomain.ErrExpired):
		code = "key_expired"
	case errors.Is(err, apikeydomain.ErrNotFound), errors.Is(err, apikeydomain.ErrInvalidKey):
		code = "invalid_key"
	case errors.Is(err, auth.ErrSchemeDisabled):
		code = "scheme_disabled"
	}
	return &APIError{Status: http.StatusUnauthorized, Code: code, Message: "authentication failed"}
}
