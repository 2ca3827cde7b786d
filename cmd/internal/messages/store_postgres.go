package messages

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kite/cmd/internal/paging"
)

// PostgresStore implements Store over PostgreSQL. The pool is owned by the caller.
type PostgresStore struct {
	pool     *pgxpool.Pool
	messages string
}

// schema is created by the embedded migrations.
const schema = "kite"

// NewPostgresStore builds a store on the messages table.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("messages: nil pool")
	}
	return &PostgresStore{pool: pool, messages: pgx.Identifier{schema, "messages"}.Sanitize()}, nil
}

const messageCols = `id, sender_id, recipient_id, content, read, created_at`

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	if err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.Read, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func (s *PostgresStore) Create(ctx context.Context, m Message) (Message, error) {
	return scanMessage(s.pool.QueryRow(ctx,
		`INSERT INTO `+s.messages+` (id, sender_id, recipient_id, content, read, created_at)
		 VALUES ($1, $2, $3, $4, false, $5)
		 RETURNING `+messageCols,
		m.ID, m.SenderID, m.RecipientID, m.Content, m.CreatedAt,
	))
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Message, error) {
	return scanMessage(s.pool.QueryRow(ctx, `SELECT `+messageCols+` FROM `+s.messages+` WHERE id = $1`, id))
}

func (s *PostgresStore) ListInbox(ctx context.Context, recipientID string, page paging.Page) ([]Message, error) {
	return s.list(ctx, "recipient_id", recipientID, page)
}

func (s *PostgresStore) ListSent(ctx context.Context, senderID string, page paging.Page) ([]Message, error) {
	return s.list(ctx, "sender_id", senderID, page)
}

// list filters on column, which is always one of the two party columns.
func (s *PostgresStore) list(ctx context.Context, column, partyID string, page paging.Page) ([]Message, error) {
	page = page.Normalize()
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageCols+` FROM `+s.messages+`
		  WHERE `+column+` = $1 AND ($2 = '' OR id < $2)
		  ORDER BY id DESC
		  LIMIT $3`,
		partyID, page.Before, page.SQLLimit(),
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Message, error) {
		return scanMessage(row)
	})
}

func (s *PostgresStore) MarkRead(ctx context.Context, recipientID, id string) (Message, error) {
	return scanMessage(s.pool.QueryRow(ctx,
		`UPDATE `+s.messages+` SET read = true
		  WHERE id = $1 AND recipient_id = $2
		  RETURNING `+messageCols,
		id, recipientID,
	))
}

func (s *PostgresStore) RemoveAuthored(ctx context.Context, senderID, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM `+s.messages+` WHERE id = $1 AND sender_id = $2`, id, senderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
