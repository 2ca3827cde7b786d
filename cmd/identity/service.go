package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"kite/cmd/security/password"
)

const (
	maxBioRunes     = 500
	maxAvatarRefLen = 2048
)

// RegisterInput is the raw registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Service is the Credential Store: registration, lookup, password checks and
// the profile/follow graph, layered over a Store.
type Service struct {
	store  Store
	pw     password.Config
	admins map[string]struct{}
	now    func() time.Time
	hash   func(plaintext string) (string, error)

	// dummyHash is verified against when a login email is unknown so both
	// failure paths cost one Argon2id computation.
	dummyHash string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAdminEmails marks accounts with these emails as admins on registration and login.
func WithAdminEmails(emails []string) ServiceOption {
	return func(s *Service) {
		for _, e := range emails {
			if n := NormalizeEmail(e); n != "" {
				s.admins[n] = struct{}{}
			}
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHasher replaces the password hashing function used by Register.
func WithHasher(hash func(plaintext string) (string, error)) ServiceOption {
	return func(s *Service) {
		if hash != nil {
			s.hash = hash
		}
	}
}

// NewService builds a Service. It fails if pw cannot produce hashes.
func NewService(store Store, pw password.Config, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("identity: nil store")
	}
	s := &Service{
		store:  store,
		pw:     pw,
		admins: map[string]struct{}{},
		now:    func() time.Time { return time.Now().UTC() },
		hash:   pw.Hash,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	h, err := pw.Hash(dummyPassword(pw.Policy))
	if err != nil {
		return nil, fmt.Errorf("identity: dummy hash: %w", err)
	}
	s.dummyHash = h
	return s, nil
}

// Register creates an identity. Duplicate username or email yields ConflictError
// before any hashing work is done.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	const op = "identity.Register"

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	if !ValidUsername(username) {
		return User{}, invalid(op, "username must be 3-32 letters, digits, '_' or '.'")
	}
	if !ValidEmail(email) {
		return User{}, invalid(op, "email is not a valid address")
	}
	if err := s.pw.Validate(in.Password); err != nil {
		return User{}, invalid(op, err.Error())
	}

	usernameNorm := NormalizeUsername(username)
	emailNorm := NormalizeEmail(email)

	field, err := s.store.Taken(ctx, usernameNorm, emailNorm)
	if err != nil {
		return User{}, err
	}
	if field != "" {
		return User{}, ConflictError{Op: op, Field: field}
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, invalid(op, err.Error())
	}

	now := s.now()
	id, err := NewULID(now)
	if err != nil {
		return User{}, err
	}

	role := RoleUser
	if s.isAdminEmail(emailNorm) {
		role = RoleAdmin
	}

	return s.store.CreateUser(ctx, NewUser{
		ID:           id,
		Username:     username,
		UsernameNorm: usernameNorm,
		Email:        email,
		EmailNorm:    emailNorm,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
	})
}

// FindByEmail returns the credential record for email (case-insensitive).
func (s *Service) FindByEmail(ctx context.Context, email string) (UserAuth, error) {
	n := NormalizeEmail(email)
	if n == "" {
		return UserAuth{}, notFound("identity.FindByEmail")
	}
	return s.store.FindAuthByEmail(ctx, n)
}

// GetUserByID returns the public identity for id.
func (s *Service) GetUserByID(ctx context.Context, id string) (User, error) {
	if strings.TrimSpace(id) == "" {
		return User{}, notFound("identity.GetUserByID")
	}
	return s.store.GetUserByID(ctx, id)
}

// VerifyPassword reports whether plaintext matches the stored hash.
// Malformed hashes never match.
func (s *Service) VerifyPassword(ua UserAuth, plaintext string) bool {
	ok, err := s.pw.Verify(ua.PasswordHash, plaintext)
	return err == nil && ok
}

// Authenticate checks email and password. Unknown email and wrong password both
// return ErrInvalidCredentials after comparable work.
func (s *Service) Authenticate(ctx context.Context, email, plaintext string) (User, error) {
	const op = "identity.Authenticate"

	ua, err := s.FindByEmail(ctx, email)
	if err != nil {
		if !IsNotFound(err) {
			return User{}, err
		}
		_, _ = s.pw.Verify(s.dummyHash, plaintext)
		return User{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}
	if !s.VerifyPassword(ua, plaintext) {
		return User{}, OpError{Op: op, Kind: ErrInvalidCredentials}
	}

	u := ua.User
	if u.Role != RoleAdmin && s.isAdminEmail(NormalizeEmail(u.Email)) {
		if err := s.store.SetRole(ctx, u.ID, RoleAdmin); err != nil {
			return User{}, err
		}
		u.Role = RoleAdmin
	}
	return u, nil
}

// UpdateProfile changes bio and/or avatar reference.
func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (User, error) {
	const op = "identity.UpdateProfile"

	if in.Bio != nil {
		b := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(b) > maxBioRunes {
			return User{}, invalid(op, fmt.Sprintf("bio must be at most %d characters", maxBioRunes))
		}
		in.Bio = &b
	}
	if in.AvatarRef != nil {
		a := strings.TrimSpace(*in.AvatarRef)
		if len(a) > maxAvatarRefLen {
			return User{}, invalid(op, "avatarRef too long")
		}
		in.AvatarRef = &a
	}
	return s.store.UpdateProfile(ctx, id, in)
}

// Follow makes followerID follow followeeID and returns the followee.
// Following twice is a no-op; following yourself is invalid input.
func (s *Service) Follow(ctx context.Context, followerID, followeeID string) (User, error) {
	const op = "identity.Follow"
	if followerID == followeeID {
		return User{}, invalid(op, "cannot follow yourself")
	}
	if _, err := s.GetUserByID(ctx, followeeID); err != nil {
		return User{}, err
	}
	if err := s.store.Follow(ctx, followerID, followeeID, s.now()); err != nil {
		return User{}, err
	}
	return s.store.GetUserByID(ctx, followeeID)
}

// Unfollow removes the follow edge if present and returns the followee.
func (s *Service) Unfollow(ctx context.Context, followerID, followeeID string) (User, error) {
	const op = "identity.Unfollow"
	if followerID == followeeID {
		return User{}, invalid(op, "cannot unfollow yourself")
	}
	if _, err := s.GetUserByID(ctx, followeeID); err != nil {
		return User{}, err
	}
	if err := s.store.Unfollow(ctx, followerID, followeeID); err != nil {
		return User{}, err
	}
	return s.store.GetUserByID(ctx, followeeID)
}

// ListFollowers returns the identities following id.
func (s *Service) ListFollowers(ctx context.Context, id string) ([]User, error) {
	if _, err := s.GetUserByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListFollowers(ctx, id)
}

// ListFollowing returns the identities id follows.
func (s *Service) ListFollowing(ctx context.Context, id string) ([]User, error) {
	if _, err := s.GetUserByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListFollowing(ctx, id)
}

// ListUsers returns every identity, oldest first.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

func (s *Service) isAdminEmail(emailNorm string) bool {
	_, ok := s.admins[emailNorm]
	return ok
}

func dummyPassword(p password.Policy) string {
	d := "kite-timing-equalizer"
	if n := p.MinLength - len(d); n > 0 {
		d += strings.Repeat("0", n)
	}
	if p.MaxLength > 0 && len(d) > p.MaxLength {
		d = d[:p.MaxLength]
	}
	return d
}
