// Package provider routes proxied requests to upstream LLM vendors
// and classifies their failures for the pipeline's retry policy.
package provider

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownVendor  = errors.New("unknown_vendor")
	ErrMalformedModel = errors.New("malformed_model")
)

// Kind classifies an upstream failure. Only transient failures are
// eligible for failover.
type Kind int

const (
	// KindTransient covers timeouts, connection failures, 5xx and
	// vendor-side throttling. Retryable on a fallback vendor.
	KindTransient Kind = iota
	// KindRejected means the vendor refused our credential or
	// request. Retrying elsewhere won't help; an operator should
	// look at the vendor configuration.
	KindRejected
	// KindMalformed means the vendor answered with a body we could
	// not interpret.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRejected:
		return "rejected"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is a classified upstream failure.
type Error struct {
	Vendor string
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Vendor, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Vendor, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(vendor string, kind Kind, status int, err error) *Error {
	return &Error{Vendor: vendor, Kind: kind, Status: status, Err: err}
}

// IsTransient reports whether err is an upstream failure worth one
// failover attempt.
func IsTransient(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == KindTransient
}

// IsRejected reports whether the vendor refused the request outright.
func IsRejected(err error) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == KindRejected
}
