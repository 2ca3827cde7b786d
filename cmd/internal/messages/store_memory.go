package messages

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"kite/cmd/internal/paging"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Message)}
}

func (s *MemoryStore) Create(ctx context.Context, m Message) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[m.ID]; exists {
		return Message{}, fmt.Errorf("messages: duplicate id %s", m.ID)
	}
	s.byID[m.ID] = m
	return m, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return m, nil
}

func (s *MemoryStore) ListInbox(ctx context.Context, recipientID string, page paging.Page) ([]Message, error) {
	return s.list(ctx, page, func(m Message) bool { return m.RecipientID == recipientID })
}

func (s *MemoryStore) ListSent(ctx context.Context, senderID string, page paging.Page) ([]Message, error) {
	return s.list(ctx, page, func(m Message) bool { return m.SenderID == senderID })
}

func (s *MemoryStore) list(ctx context.Context, page paging.Page, keep func(Message) bool) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page = page.Normalize()

	s.mu.RLock()
	out := make([]Message, 0)
	for _, m := range s.byID {
		if keep(m) && page.Admits(m.ID) {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return paging.Cut(out, page), nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, recipientID, id string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok || m.RecipientID != recipientID {
		return Message{}, ErrNotFound
	}
	m.Read = true
	s.byID[id] = m
	return m, nil
}

func (s *MemoryStore) RemoveAuthored(ctx context.Context, senderID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok || m.SenderID != senderID {
		return ErrNotFound
	}
	delete(s.byID, id)
	return nil
}
