package posts

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"kite/cmd/internal/paging"
)

// MemoryStore keeps posts in process.
type MemoryStore struct {
	mu    sync.RWMutex
	posts map[string]*Post
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{posts: make(map[string]*Post)}
}

func (s *MemoryStore) Create(ctx context.Context, p Post) (Post, error) {
	if err := ctx.Err(); err != nil {
		return Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p.LikerIDs = []string{}
	p.Comments = []Comment{}
	s.posts[p.ID] = &p
	return clonePost(&p), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Post, error) {
	if err := ctx.Err(); err != nil {
		return Post{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	return clonePost(p), nil
}

func (s *MemoryStore) List(ctx context.Context, page paging.Page) ([]Post, error) {
	return s.list(ctx, page, func(*Post) bool { return true })
}

func (s *MemoryStore) ListByAuthor(ctx context.Context, authorID string, page paging.Page) ([]Post, error) {
	return s.list(ctx, page, func(p *Post) bool { return p.AuthorID == authorID })
}

func (s *MemoryStore) list(ctx context.Context, page paging.Page, keep func(*Post) bool) ([]Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page = page.Normalize()

	s.mu.RLock()
	out := make([]Post, 0)
	for _, p := range s.posts {
		if keep(p) && page.Admits(p.ID) {
			out = append(out, clonePost(p))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paging.Cut(out, page), nil
}

func (s *MemoryStore) UpdateAuthored(ctx context.Context, ownerID, id string, in Input, now time.Time) (Post, error) {
	if err := ctx.Err(); err != nil {
		return Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok || p.AuthorID != ownerID {
		return Post{}, ErrNotFound
	}
	p.Content = in.Content
	p.MediaRef = in.MediaRef
	p.UpdatedAt = &now
	return clonePost(p), nil
}

func (s *MemoryStore) RemoveAuthored(ctx context.Context, ownerID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok || p.AuthorID != ownerID {
		return ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *MemoryStore) Like(ctx context.Context, id, userID string, _ time.Time) (Post, error) {
	if err := ctx.Err(); err != nil {
		return Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	if !slices.Contains(p.LikerIDs, userID) {
		p.LikerIDs = append(p.LikerIDs, userID)
	}
	return clonePost(p), nil
}

func (s *MemoryStore) Unlike(ctx context.Context, id, userID string) (Post, error) {
	if err := ctx.Err(); err != nil {
		return Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return Post{}, ErrNotFound
	}
	p.LikerIDs = slices.DeleteFunc(p.LikerIDs, func(u string) bool { return u == userID })
	return clonePost(p), nil
}

func (s *MemoryStore) AddComment(ctx context.Context, c Comment) (Post, error) {
	if err := ctx.Err(); err != nil {
		return Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[c.PostID]
	if !ok {
		return Post{}, ErrNotFound
	}
	p.Comments = append(p.Comments, c)
	return clonePost(p), nil
}

func (s *MemoryStore) GetComment(ctx context.Context, postID, commentID string) (Comment, error) {
	if err := ctx.Err(); err != nil {
		return Comment{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.posts[postID]; ok {
		for _, c := range p.Comments {
			if c.ID == commentID {
				return c, nil
			}
		}
	}
	return Comment{}, ErrNotFound
}

func (s *MemoryStore) RemoveAuthoredComment(ctx context.Context, ownerID, postID, commentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[postID]
	if !ok {
		return ErrNotFound
	}
	i := slices.IndexFunc(p.Comments, func(c Comment) bool { return c.ID == commentID && c.AuthorID == ownerID })
	if i < 0 {
		return ErrNotFound
	}
	p.Comments = slices.Delete(p.Comments, i, i+1)
	return nil
}

func clonePost(p *Post) Post {
	out := *p
	out.LikerIDs = append([]string{}, p.LikerIDs...)
	out.Comments = append([]Comment{}, p.Comments...)
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}
