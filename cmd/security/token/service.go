package token

import (
	"fmt"
	"strings"
	"time"
)

// Supported formats.
const (
	FormatJWT    = "jwt"
	FormatPASETO = "paseto"
)

// MinSecretBytes is the shortest HS256 secret accepted.
const MinSecretBytes = 32

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 30 * 24 * time.Hour

// Claims is what a verified token asserts.
type Claims struct {
	SubjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issued is a freshly signed token with its validity window.
type Issued struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Service issues and verifies tokens. Implementations are safe for concurrent use.
type Service interface {
	Issue(subjectID string, now time.Time) (Issued, error)
	Verify(token string, now time.Time) (Claims, error)
}

// Config selects the format and its key material.
type Config struct {
	Format string
	TTL    time.Duration

	// Secret signs jwt tokens.
	Secret string

	// PasetoV4SecretKeyHex is the hex Ed25519 secret key for paseto tokens.
	PasetoV4SecretKeyHex string
}

// New builds the Service for cfg.Format.
func New(cfg Config) (Service, error) {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrConfig)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", FormatJWT:
		return newJWT(cfg.Secret, cfg.TTL)
	case FormatPASETO:
		return newPaseto(cfg.PasetoV4SecretKeyHex, cfg.TTL)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrConfig, cfg.Format)
	}
}

// Token timestamps are whole seconds on the wire.
func windowAt(now time.Time, ttl time.Duration) (time.Time, time.Time) {
	iat := now.UTC().Truncate(time.Second)
	return iat, iat.Add(ttl)
}
