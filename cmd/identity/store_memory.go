package identity

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the in-process Store used when no database is configured.
type MemoryStore struct {
	mu sync.RWMutex

	users      map[string]*memUser
	byUsername map[string]string // username_norm -> id
	byEmail    map[string]string // email_norm -> id

	// Edges in insertion order.
	followers map[string][]string // followee -> followers
	following map[string][]string // follower -> followees
}

type memUser struct {
	user User
	hash string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]*memUser),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		followers:  make(map[string][]string),
		following:  make(map[string][]string),
	}
}

func (s *MemoryStore) Taken(ctx context.Context, usernameNorm, emailNorm string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.takenLocked(usernameNorm, emailNorm), nil
}

func (s *MemoryStore) takenLocked(usernameNorm, emailNorm string) string {
	if _, ok := s.byEmail[emailNorm]; ok {
		return "email"
	}
	if _, ok := s.byUsername[usernameNorm]; ok {
		return "username"
	}
	return ""
}

func (s *MemoryStore) CreateUser(ctx context.Context, in NewUser) (User, error) {
	const op = "identity.CreateUser"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if in.ID == "" || in.UsernameNorm == "" || in.EmailNorm == "" || in.PasswordHash == "" {
		return User{}, invalid(op, "missing required field")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if field := s.takenLocked(in.UsernameNorm, in.EmailNorm); field != "" {
		return User{}, ConflictError{Op: op, Field: field}
	}

	role := in.Role
	if role == "" {
		role = RoleUser
	}
	u := User{
		ID:        in.ID,
		Username:  in.Username,
		Email:     in.Email,
		Role:      role,
		CreatedAt: in.CreatedAt,
	}
	s.users[in.ID] = &memUser{user: u, hash: in.PasswordHash}
	s.byUsername[in.UsernameNorm] = in.ID
	s.byEmail[in.EmailNorm] = in.ID

	return s.viewLocked(in.ID), nil
}

func (s *MemoryStore) FindAuthByEmail(ctx context.Context, emailNorm string) (UserAuth, error) {
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailNorm]
	if !ok {
		return UserAuth{}, notFound("identity.FindAuthByEmail")
	}
	return UserAuth{User: s.viewLocked(id), PasswordHash: s.users[id].hash}, nil
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[id]; !ok {
		return User{}, notFound("identity.GetUserByID")
	}
	return s.viewLocked(id), nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	return s.viewsLocked(ids), nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.users[id]
	if !ok {
		return User{}, notFound("identity.UpdateProfile")
	}
	if in.Bio != nil {
		m.user.Bio = *in.Bio
	}
	if in.AvatarRef != nil {
		m.user.AvatarRef = *in.AvatarRef
	}
	return s.viewLocked(id), nil
}

func (s *MemoryStore) SetRole(ctx context.Context, id, role string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.users[id]
	if !ok {
		return notFound("identity.SetRole")
	}
	m.user.Role = role
	return nil
}

func (s *MemoryStore) Follow(ctx context.Context, followerID, followeeID string, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.users[followerID] == nil || s.users[followeeID] == nil {
		return notFound("identity.Follow")
	}
	if slices.Contains(s.following[followerID], followeeID) {
		return nil
	}
	s.following[followerID] = append(s.following[followerID], followeeID)
	s.followers[followeeID] = append(s.followers[followeeID], followerID)
	return nil
}

func (s *MemoryStore) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.following[followerID] = slices.DeleteFunc(s.following[followerID], func(id string) bool { return id == followeeID })
	s.followers[followeeID] = slices.DeleteFunc(s.followers[followeeID], func(id string) bool { return id == followerID })
	return nil
}

func (s *MemoryStore) ListFollowers(ctx context.Context, id string) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewsLocked(s.followers[id]), nil
}

func (s *MemoryStore) ListFollowing(ctx context.Context, id string) ([]User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewsLocked(s.following[id]), nil
}

// viewLocked returns a copy of the user with its follow edges; callers hold mu.
func (s *MemoryStore) viewLocked(id string) User {
	u := s.users[id].user
	u.FollowerIDs = slices.Clone(s.followers[id])
	u.FollowingIDs = slices.Clone(s.following[id])
	if u.FollowerIDs == nil {
		u.FollowerIDs = []string{}
	}
	if u.FollowingIDs == nil {
		u.FollowingIDs = []string{}
	}
	return u
}

// viewsLocked returns users for ids ordered by creation time then id.
func (s *MemoryStore) viewsLocked(ids []string) []User {
	out := make([]User, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.users[id]; ok {
			out = append(out, s.viewLocked(id))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
