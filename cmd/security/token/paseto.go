package token

import (
	"fmt"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

type pasetoService struct {
	ttl    time.Duration
	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

func newPaseto(secretHex string, ttl time.Duration) (*pasetoService, error) {
	secret, err := paseto.NewV4AsymmetricSecretKeyFromHex(secretHex)
	if err != nil {
		return nil, fmt.Errorf("%w: paseto v4 secret key", ErrConfig)
	}
	return &pasetoService{ttl: ttl, secret: secret, public: secret.Public()}, nil
}

func (s *pasetoService) Issue(subjectID string, now time.Time) (Issued, error) {
	if subjectID == "" {
		return Issued{}, fmt.Errorf("%w: empty subject", ErrConfig)
	}
	iat, exp := windowAt(now, s.ttl)

	tok := paseto.NewToken()
	tok.SetSubject(subjectID)
	tok.SetIssuedAt(iat)
	tok.SetExpiration(exp)

	return Issued{Token: tok.V4Sign(s.secret, nil), IssuedAt: iat, ExpiresAt: exp}, nil
}

func (s *pasetoService) Verify(raw string, now time.Time) (Claims, error) {
	// Expiry is checked after the signature so an expired token is reported as such.
	p := paseto.NewParserWithoutExpiryCheck()
	parsed, err := p.ParseV4Public(s.public, raw, nil)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	sub, err := parsed.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, ErrInvalidToken
	}
	iat, err := parsed.GetIssuedAt()
	if err != nil || iat.After(now) {
		return Claims{}, ErrInvalidToken
	}
	exp, err := parsed.GetExpiration()
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if !now.Before(exp) {
		return Claims{}, ErrExpiredToken
	}

	return Claims{SubjectID: sub, IssuedAt: iat.UTC(), ExpiresAt: exp.UTC()}, nil
}
