package token

import "errors"

// Public, stable errors for callers.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrConfig       = errors.New("invalid token config")
)
