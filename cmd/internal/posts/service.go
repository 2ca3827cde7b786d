package posts

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"kite/cmd/identity/ids"
	"kite/cmd/internal/ownership"
	"kite/cmd/internal/paging"
)

// Service applies validation and ownership over a Store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService builds a Service. now may be nil.
func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{store: store, now: now}
}

// Create stores a post authored by authorID.
func (s *Service) Create(ctx context.Context, authorID string, in Input) (Post, error) {
	in, err := cleanInput(in)
	if err != nil {
		return Post{}, err
	}
	now := s.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return Post{}, err
	}
	return s.store.Create(ctx, Post{
		ID:        id,
		AuthorID:  authorID,
		Content:   in.Content,
		MediaRef:  in.MediaRef,
		CreatedAt: now,
	})
}

// Get returns any post by id.
func (s *Service) Get(ctx context.Context, id string) (Post, error) {
	if !ids.Valid(id) {
		return Post{}, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// List returns posts newest first.
func (s *Service) List(ctx context.Context, page paging.Page) ([]Post, error) {
	return s.store.List(ctx, page)
}

// ListByAuthor returns authorID's posts newest first.
func (s *Service) ListByAuthor(ctx context.Context, authorID string, page paging.Page) ([]Post, error) {
	return s.store.ListByAuthor(ctx, authorID, page)
}

// Update replaces content and media of a post callerID authored.
func (s *Service) Update(ctx context.Context, callerID, id string, in Input) (Post, error) {
	in, err := cleanInput(in)
	if err != nil {
		return Post{}, err
	}
	if _, err := ownership.Load(ctx, s.Get, id, callerID); err != nil {
		return Post{}, err
	}
	return s.store.UpdateAuthored(ctx, callerID, id, in, s.now())
}

// Delete removes a post callerID authored. Its likes and comments go with it.
func (s *Service) Delete(ctx context.Context, callerID, id string) error {
	if _, err := ownership.Load(ctx, s.Get, id, callerID); err != nil {
		return err
	}
	return s.store.RemoveAuthored(ctx, callerID, id)
}

// Like records callerID's like.
func (s *Service) Like(ctx context.Context, callerID, id string) (Post, error) {
	if !ids.Valid(id) {
		return Post{}, ErrNotFound
	}
	return s.store.Like(ctx, id, callerID, s.now())
}

// Unlike drops callerID's like.
func (s *Service) Unlike(ctx context.Context, callerID, id string) (Post, error) {
	if !ids.Valid(id) {
		return Post{}, ErrNotFound
	}
	return s.store.Unlike(ctx, id, callerID)
}

// AddComment appends a comment by callerID.
func (s *Service) AddComment(ctx context.Context, callerID, postID, text string) (Post, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Post{}, InputError{Msg: "text is required"}
	}
	if utf8.RuneCountInString(text) > maxCommentRunes {
		return Post{}, InputError{Msg: fmt.Sprintf("text must be at most %d characters", maxCommentRunes)}
	}
	if !ids.Valid(postID) {
		return Post{}, ErrNotFound
	}

	now := s.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return Post{}, err
	}
	return s.store.AddComment(ctx, Comment{ID: id, PostID: postID, AuthorID: callerID, Text: text, CreatedAt: now})
}

// DeleteComment removes a comment callerID authored and returns the post.
func (s *Service) DeleteComment(ctx context.Context, callerID, postID, commentID string) (Post, error) {
	load := func(ctx context.Context, id string) (Comment, error) {
		if !ids.Valid(postID) || !ids.Valid(id) {
			return Comment{}, ErrNotFound
		}
		return s.store.GetComment(ctx, postID, id)
	}
	if _, err := ownership.Load(ctx, load, commentID, callerID); err != nil {
		return Post{}, err
	}
	if err := s.store.RemoveAuthoredComment(ctx, callerID, postID, commentID); err != nil {
		return Post{}, err
	}
	return s.store.Get(ctx, postID)
}

func cleanInput(in Input) (Input, error) {
	in.Content = strings.TrimSpace(in.Content)
	in.MediaRef = strings.TrimSpace(in.MediaRef)

	switch {
	case in.Content == "":
		return Input{}, InputError{Msg: "content is required"}
	case utf8.RuneCountInString(in.Content) > maxContentRunes:
		return Input{}, InputError{Msg: fmt.Sprintf("content must be at most %d characters", maxContentRunes)}
	case len(in.MediaRef) > maxMediaRefLen:
		return Input{}, InputError{Msg: "mediaRef too long"}
	}
	return in, nil
}
