package authapi

import (
	"fmt"
	"time"

	"kite/cmd/internal/httpx"
)

// Config controls the public auth endpoints.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// Per client IP; a zero max disables the limit.
	RegisterMax    int
	RegisterWindow time.Duration
	LoginMax       int
	LoginWindow    time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   httpx.DefaultMaxBodyBytes,
		RegisterMax:    10,
		RegisterWindow: time.Hour,
		LoginMax:       20,
		LoginWindow:    5 * time.Minute,
	}
}

// Check reports settings that cannot work together.
func (c Config) Check() error {
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("authapi: max body bytes must be positive")
	}
	if c.RegisterMax < 0 || c.LoginMax < 0 {
		return fmt.Errorf("authapi: rate limits cannot be negative")
	}
	if c.RegisterMax > 0 && c.RegisterWindow <= 0 {
		return fmt.Errorf("authapi: register window must be positive")
	}
	if c.LoginMax > 0 && c.LoginWindow <= 0 {
		return fmt.Errorf("authapi: login window must be positive")
	}
	return nil
}
