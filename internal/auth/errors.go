package auth

import "errors"

// Verification failures are distinguished for diagnostics; the HTTP
// layer maps every one of them to a single 401.
var (
	ErrNoCredential     = errors.New("no_credential")
	ErrMalformedToken   = errors.New("malformed_token")
	ErrTokenExpired     = errors.New("token_expired")
	ErrTokenNotYetValid = errors.New("token_not_yet_valid")
	ErrBadSignature     = errors.New("bad_signature")
	ErrUnknownIssuer    = errors.New("unknown_issuer")
	ErrWrongAudience    = errors.New("wrong_audience")
	ErrUnknownKeyID     = errors.New("unknown_key_id")
	ErrSchemeDisabled   = errors.New("scheme_disabled")
)
