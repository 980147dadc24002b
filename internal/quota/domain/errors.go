package domain

import "errors"

var (
	ErrQuotaExceeded       = errors.New("quota_exceeded")
	ErrAccountInactive     = errors.New("account_inactive")
	ErrReservationNotFound = errors.New("reservation_not_found")
	ErrReservationResolved = errors.New("reservation_already_resolved")
)
