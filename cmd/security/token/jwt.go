package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwtService struct {
	secret []byte
	ttl    time.Duration
}

func newJWT(secret string, ttl time.Duration) (*jwtService, error) {
	if len(secret) < MinSecretBytes {
		return nil, fmt.Errorf("%w: secret must be at least %d bytes", ErrConfig, MinSecretBytes)
	}
	return &jwtService{secret: []byte(secret), ttl: ttl}, nil
}

func (s *jwtService) Issue(subjectID string, now time.Time) (Issued, error) {
	if subjectID == "" {
		return Issued{}, fmt.Errorf("%w: empty subject", ErrConfig)
	}
	iat, exp := windowAt(now, s.ttl)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return Issued{}, fmt.Errorf("sign: %w", err)
	}
	return Issued{Token: signed, IssuedAt: iat, ExpiresAt: exp}, nil
}

func (s *jwtService) Verify(raw string, now time.Time) (Claims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &rc,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpiredToken
	default:
		return Claims{}, ErrInvalidToken
	}

	if rc.Subject == "" || rc.IssuedAt == nil {
		return Claims{}, ErrInvalidToken
	}
	return Claims{
		SubjectID: rc.Subject,
		IssuedAt:  rc.IssuedAt.UTC(),
		ExpiresAt: rc.ExpiresAt.UTC(),
	}, nil
}
