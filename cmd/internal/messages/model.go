// Package messages stores direct messages between two identities.
//
// A message is visible only to its sender and recipient; anyone else gets the
// same 404 as for a missing message. Only the recipient can mark it read and
// only the sender can delete it. Messages are polled, never pushed.
package messages

import (
	"errors"
	"time"

	"kite/cmd/internal/ownership"
)

const maxContentRunes = 5000

var (
	// ErrNotFound covers missing, hidden and not-owned messages, and unknown recipients.
	ErrNotFound = ownership.ErrNotFound
	// ErrInvalidInput is wrapped by InputError.
	ErrInvalidInput = errors.New("invalid_input")
)

// InputError is a validation failure with a client-safe message.
type InputError struct{ Msg string }

func (e InputError) Error() string { return e.Msg }

func (e InputError) Unwrap() error { return ErrInvalidInput }

// Message is a direct message.
type Message struct {
	ID          string
	SenderID    string
	RecipientID string
	Content     string
	Read        bool
	CreatedAt   time.Time
}

// OwnerID implements ownership.Owned; the sender owns a message.
func (m Message) OwnerID() string { return m.SenderID }

// received views a message from the recipient's side.
type received struct{ Message }

func (r received) OwnerID() string { return r.RecipientID }
