// Package posts stores and serves authored posts with likes and comments.
//
// Any authenticated identity may read, like and comment on a post. Only the
// author may edit or delete it, and only a comment's author may delete the
// comment. A caller who is not the author gets the same 404 as for a missing
// post.
package posts

import (
	"errors"
	"time"

	"kite/cmd/internal/ownership"
)

const (
	maxContentRunes = 5000
	maxCommentRunes = 1000
	maxMediaRefLen  = 2048
)

var (
	// ErrNotFound covers missing and not-owned posts and comments.
	ErrNotFound = ownership.ErrNotFound
	// ErrInvalidInput is wrapped by InputError.
	ErrInvalidInput = errors.New("invalid_input")
)

// InputError is a validation failure with a client-safe message.
type InputError struct{ Msg string }

func (e InputError) Error() string { return e.Msg }

func (e InputError) Unwrap() error { return ErrInvalidInput }

// Post is an authored post.
type Post struct {
	ID        string
	AuthorID  string
	Content   string
	MediaRef  string
	LikerIDs  []string
	Comments  []Comment
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// OwnerID implements ownership.Owned.
func (p Post) OwnerID() string { return p.AuthorID }

// Comment belongs to a post; comments keep insertion order.
type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	Text      string
	CreatedAt time.Time
}

// OwnerID implements ownership.Owned.
func (c Comment) OwnerID() string { return c.AuthorID }

// Input is the client-editable part of a post.
type Input struct {
	Content  string
	MediaRef string
}
