package messages

import (
	"context"

	"kite/cmd/internal/paging"
)

// Store persists messages. Mutations take the acting identity and re-apply
// the ownership rule themselves.
type Store interface {
	Create(ctx context.Context, m Message) (Message, error)
	Get(ctx context.Context, id string) (Message, error)

	// ListInbox returns messages addressed to recipientID, newest first.
	ListInbox(ctx context.Context, recipientID string, page paging.Page) ([]Message, error)
	// ListSent returns messages sent by senderID, newest first.
	ListSent(ctx context.Context, senderID string, page paging.Page) ([]Message, error)

	// MarkRead flags id as read when it is addressed to recipientID.
	MarkRead(ctx context.Context, recipientID, id string) (Message, error)
	// RemoveAuthored deletes id when it was sent by senderID.
	RemoveAuthored(ctx context.Context, senderID, id string) error
}
