package domain

import "errors"

var (
	ErrNotFound   = errors.New("api_key_not_found")
	ErrRevoked    = errors.New("api_key_revoked")
	ErrExpired    = errors.New("api_key_expired")
	ErrInvalidKey = errors.New("invalid_api_key")
)
