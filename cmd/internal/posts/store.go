package posts

import (
	"context"
	"time"

	"kite/cmd/internal/paging"
)

// Store is the posts persistence boundary. Lists are newest first.
//
// The *Authored operations re-apply the owner predicate and return ErrNotFound
// when it does not match.
type Store interface {
	Create(ctx context.Context, p Post) (Post, error)
	Get(ctx context.Context, id string) (Post, error)
	List(ctx context.Context, page paging.Page) ([]Post, error)
	ListByAuthor(ctx context.Context, authorID string, page paging.Page) ([]Post, error)

	UpdateAuthored(ctx context.Context, ownerID, id string, in Input, now time.Time) (Post, error)
	RemoveAuthored(ctx context.Context, ownerID, id string) error

	// Like and Unlike are idempotent.
	Like(ctx context.Context, id, userID string, now time.Time) (Post, error)
	Unlike(ctx context.Context, id, userID string) (Post, error)

	AddComment(ctx context.Context, c Comment) (Post, error)
	GetComment(ctx context.Context, postID, commentID string) (Comment, error)
	RemoveAuthoredComment(ctx context.Context, ownerID, postID, commentID string) error
}
