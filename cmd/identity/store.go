package identity

import (
	"context"
	"time"
)

// Roles understood by the role gate.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is Kite's canonical identity as seen by the rest of the system.
// It deliberately carries no password material.
type User struct {
	ID           string
	Username     string
	Email        string
	Bio          string
	AvatarRef    string
	Role         string
	FollowerIDs  []string
	FollowingIDs []string
	CreatedAt    time.Time
}

// UserAuth pairs a User with its stored password hash.
// It is only returned by lookups used for login.
type UserAuth struct {
	User         User
	PasswordHash string
}

// NewUser is the persistence input for a registration. PasswordHash is already hashed.
type NewUser struct {
	ID           string
	Username     string
	UsernameNorm string
	Email        string
	EmailNorm    string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// ProfileUpdate carries optional profile changes; nil fields are left untouched.
type ProfileUpdate struct {
	Bio       *string
	AvatarRef *string
}

// Store is the identity persistence boundary.
//
// Implementations must enforce username/email uniqueness on the normalized keys
// and report violations as ConflictError.
type Store interface {
	// Taken reports which unique field ("username" or "email") is already in use, or "".
	Taken(ctx context.Context, usernameNorm, emailNorm string) (string, error)
	CreateUser(ctx context.Context, in NewUser) (User, error)
	FindAuthByEmail(ctx context.Context, emailNorm string) (UserAuth, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (User, error)
	SetRole(ctx context.Context, id string, role string) error

	// Follow and Unfollow are idempotent.
	Follow(ctx context.Context, followerID, followeeID string, now time.Time) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
	ListFollowers(ctx context.Context, id string) ([]User, error)
	ListFollowing(ctx context.Context, id string) ([]User, error)
}
