package messages

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"kite/cmd/identity"
	"kite/cmd/identity/ids"
	"kite/cmd/internal/ownership"
	"kite/cmd/internal/paging"
)

// Recipients resolves the identities a message may be addressed to.
type Recipients interface {
	GetUserByID(ctx context.Context, id string) (identity.User, error)
}

// Service applies validation and visibility over a Store.
type Service struct {
	store Store
	users Recipients
	now   func() time.Time
}

// NewService builds a Service. now may be nil.
func NewService(store Store, users Recipients, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{store: store, users: users, now: now}
}

// Send stores a message from senderID to recipientID.
func (s *Service) Send(ctx context.Context, senderID, recipientID, content string) (Message, error) {
	content = strings.TrimSpace(content)
	recipientID = strings.TrimSpace(recipientID)
	switch {
	case recipientID == "":
		return Message{}, InputError{Msg: "recipientId is required"}
	case recipientID == senderID:
		return Message{}, InputError{Msg: "cannot message yourself"}
	case content == "":
		return Message{}, InputError{Msg: "content is required"}
	case utf8.RuneCountInString(content) > maxContentRunes:
		return Message{}, InputError{Msg: fmt.Sprintf("content must be at most %d characters", maxContentRunes)}
	}

	if _, err := s.users.GetUserByID(ctx, recipientID); err != nil {
		if identity.IsNotFound(err) {
			return Message{}, ErrNotFound
		}
		return Message{}, err
	}

	now := s.now()
	id, err := ids.NewULID(now)
	if err != nil {
		return Message{}, err
	}
	return s.store.Create(ctx, Message{
		ID:          id,
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   now,
	})
}

// Get returns id when callerID sent or received it.
func (s *Service) Get(ctx context.Context, callerID, id string) (Message, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return Message{}, err
	}
	if err := ownership.Check(callerID, m.SenderID, m.RecipientID); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Inbox lists messages addressed to callerID, newest first.
func (s *Service) Inbox(ctx context.Context, callerID string, page paging.Page) ([]Message, error) {
	return s.store.ListInbox(ctx, callerID, page)
}

// Sent lists messages sent by callerID, newest first.
func (s *Service) Sent(ctx context.Context, callerID string, page paging.Page) ([]Message, error) {
	return s.store.ListSent(ctx, callerID, page)
}

// MarkRead flags a message addressed to callerID as read.
func (s *Service) MarkRead(ctx context.Context, callerID, id string) (Message, error) {
	load := func(ctx context.Context, id string) (received, error) {
		m, err := s.load(ctx, id)
		return received{m}, err
	}
	if _, err := ownership.Load(ctx, load, id, callerID); err != nil {
		return Message{}, err
	}
	return s.store.MarkRead(ctx, callerID, id)
}

// Delete removes a message callerID sent.
func (s *Service) Delete(ctx context.Context, callerID, id string) error {
	if _, err := ownership.Load(ctx, s.load, id, callerID); err != nil {
		return err
	}
	return s.store.RemoveAuthored(ctx, callerID, id)
}

func (s *Service) load(ctx context.Context, id string) (Message, error) {
	if !ids.Valid(id) {
		return Message{}, ErrNotFound
	}
	return s.store.Get(ctx, id)
}
