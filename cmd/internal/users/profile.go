// Package users serves profiles, the follow graph and the admin user listing.
package users

import (
	"time"

	"kite/cmd/identity"
)

// Profile is the public JSON view of an identity. Email is only present on
// the caller's own profile and in admin listings.
type Profile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	Bio          string    `json:"bio"`
	AvatarRef    string    `json:"avatarRef"`
	Role         string    `json:"role"`
	FollowerIDs  []string  `json:"followerIds"`
	FollowingIDs []string  `json:"followingIds"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewProfile renders u. withEmail controls whether the email is exposed.
func NewProfile(u identity.User, withEmail bool) Profile {
	p := Profile{
		ID:           u.ID,
		Username:     u.Username,
		Bio:          u.Bio,
		AvatarRef:    u.AvatarRef,
		Role:         u.Role,
		FollowerIDs:  orEmpty(u.FollowerIDs),
		FollowingIDs: orEmpty(u.FollowingIDs),
		CreatedAt:    u.CreatedAt,
	}
	if withEmail {
		p.Email = u.Email
	}
	return p
}

func newProfiles(us []identity.User, withEmail bool) []Profile {
	out := make([]Profile, 0, len(us))
	for _, u := range us {
		out = append(out, NewProfile(u, withEmail))
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
