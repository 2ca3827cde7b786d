package posts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kite/cmd/internal/paging"
)

// PostgresStore implements Store over PostgreSQL. The pool is owned by the caller.
type PostgresStore struct {
	pool     *pgxpool.Pool
	posts    string
	likes    string
	comments string
}

// schema is created by the embedded migrations.
const schema = "kite"

// NewPostgresStore builds a store on the posts tables.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("posts: nil pool")
	}
	return &PostgresStore{
		pool:     pool,
		posts:    pgx.Identifier{schema, "posts"}.Sanitize(),
		likes:    pgx.Identifier{schema, "post_likes"}.Sanitize(),
		comments: pgx.Identifier{schema, "post_comments"}.Sanitize(),
	}, nil
}

const postCols = `id, author_id, content, media_ref, created_at, updated_at`

func scanPost(row pgx.Row) (Post, error) {
	var p Post
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Content, &p.MediaRef, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Post{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.LikerIDs = []string{}
	p.Comments = []Comment{}
	return p, nil
}

func (s *PostgresStore) Create(ctx context.Context, p Post) (Post, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.posts+` (id, author_id, content, media_ref, created_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.AuthorID, p.Content, p.MediaRef, p.CreatedAt,
	)
	if err != nil {
		return Post{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.LikerIDs = []string{}
	p.Comments = []Comment{}
	return p, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Post, error) {
	p, err := scanPost(s.pool.QueryRow(ctx, `SELECT `+postCols+` FROM `+s.posts+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, ErrNotFound
		}
		return Post{}, err
	}
	out := []Post{p}
	if err := s.hydrate(ctx, out); err != nil {
		return Post{}, err
	}
	return out[0], nil
}

func (s *PostgresStore) List(ctx context.Context, page paging.Page) ([]Post, error) {
	page = page.Normalize()
	return s.query(ctx,
		`SELECT `+postCols+` FROM `+s.posts+`
		  WHERE ($1 = '' OR id < $1)
		  ORDER BY id DESC
		  LIMIT $2`,
		page.Before, page.SQLLimit())
}

func (s *PostgresStore) ListByAuthor(ctx context.Context, authorID string, page paging.Page) ([]Post, error) {
	page = page.Normalize()
	return s.query(ctx,
		`SELECT `+postCols+` FROM `+s.posts+`
		  WHERE author_id = $1 AND ($2 = '' OR id < $2)
		  ORDER BY id DESC
		  LIMIT $3`,
		authorID, page.Before, page.SQLLimit())
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]Post, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	out := make([]Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// hydrate loads likes and comments for posts in two batched queries.
func (s *PostgresStore) hydrate(ctx context.Context, posts []Post) error {
	if len(posts) == 0 {
		return nil
	}
	idx := make(map[string]int, len(posts))
	ids := make([]string, len(posts))
	for i, p := range posts {
		idx[p.ID] = i
		ids[i] = p.ID
	}

	rows, err := s.pool.Query(ctx,
		`SELECT post_id, user_id FROM `+s.likes+` WHERE post_id = ANY($1) ORDER BY created_at, user_id`, ids)
	if err != nil {
		return err
	}
	for rows.Next() {
		var postID, userID string
		if err := rows.Scan(&postID, &userID); err != nil {
			rows.Close()
			return err
		}
		i := idx[postID]
		posts[i].LikerIDs = append(posts[i].LikerIDs, userID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.pool.Query(ctx,
		`SELECT id, post_id, author_id, body, created_at FROM `+s.comments+`
		  WHERE post_id = ANY($1) ORDER BY created_at, id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Text, &c.CreatedAt); err != nil {
			return err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		i := idx[c.PostID]
		posts[i].Comments = append(posts[i].Comments, c)
	}
	return rows.Err()
}

func (s *PostgresStore) UpdateAuthored(ctx context.Context, ownerID, id string, in Input, now time.Time) (Post, error) {
	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.posts+` SET content = $3, media_ref = $4, updated_at = $5 WHERE id = $1 AND author_id = $2`,
		id, ownerID, in.Content, in.MediaRef, now,
	)
	if err != nil {
		return Post{}, err
	}
	if ct.RowsAffected() == 0 {
		return Post{}, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *PostgresStore) RemoveAuthored(ctx context.Context, ownerID, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM `+s.posts+` WHERE id = $1 AND author_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Like(ctx context.Context, id, userID string, now time.Time) (Post, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.likes+` (post_id, user_id, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (post_id, user_id) DO NOTHING`,
		id, userID, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Post{}, ErrNotFound
		}
		return Post{}, err
	}
	return s.Get(ctx, id)
}

func (s *PostgresStore) Unlike(ctx context.Context, id, userID string) (Post, error) {
	if _, err := s.pool.Exec(ctx, `DELETE FROM `+s.likes+` WHERE post_id = $1 AND user_id = $2`, id, userID); err != nil {
		return Post{}, err
	}
	return s.Get(ctx, id)
}

func (s *PostgresStore) AddComment(ctx context.Context, c Comment) (Post, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.comments+` (id, post_id, author_id, body, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.PostID, c.AuthorID, c.Text, c.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Post{}, ErrNotFound
		}
		return Post{}, err
	}
	return s.Get(ctx, c.PostID)
}

func (s *PostgresStore) GetComment(ctx context.Context, postID, commentID string) (Comment, error) {
	var c Comment
	err := s.pool.QueryRow(ctx,
		`SELECT id, post_id, author_id, body, created_at FROM `+s.comments+` WHERE id = $1 AND post_id = $2`,
		commentID, postID,
	).Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Text, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Comment{}, ErrNotFound
		}
		return Comment{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (s *PostgresStore) RemoveAuthoredComment(ctx context.Context, ownerID, postID, commentID string) error {
	ct, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.comments+` WHERE id = $1 AND post_id = $2 AND author_id = $3`,
		commentID, postID, ownerID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
