package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is created by the embedded migrations.
const schema = "kite"

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store never closes it.
// Table identifiers are quoted through pgx.Identifier.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) users() string   { return pgIdent("users") }
func (s *PostgresStore) follows() string { return pgIdent("user_follows") }

// userCols selects a User including its follow edges as text[] (oldest edge first).
func (s *PostgresStore) userCols(alias string) string {
	f := s.follows()
	return alias + `.id, ` + alias + `.username, ` + alias + `.email, ` + alias + `.bio, ` +
		alias + `.avatar_ref, ` + alias + `.role, ` + alias + `.created_at,
		ARRAY(SELECT f.follower_id FROM ` + f + ` f WHERE f.followee_id = ` + alias + `.id ORDER BY f.created_at, f.follower_id),
		ARRAY(SELECT f.followee_id FROM ` + f + ` f WHERE f.follower_id = ` + alias + `.id ORDER BY f.created_at, f.followee_id)`
}

func scanUser(row pgx.Row, extra ...any) (User, error) {
	var u User
	dest := []any{&u.ID, &u.Username, &u.Email, &u.Bio, &u.AvatarRef, &u.Role, &u.CreatedAt, &u.FollowerIDs, &u.FollowingIDs}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *PostgresStore) Taken(ctx context.Context, usernameNorm, emailNorm string) (string, error) {
	var emailHit, usernameHit bool
	err := s.pool.QueryRow(ctx,
		`SELECT
		   EXISTS (SELECT 1 FROM `+s.users()+` WHERE email_norm = $2),
		   EXISTS (SELECT 1 FROM `+s.users()+` WHERE username_norm = $1)`,
		usernameNorm, emailNorm,
	).Scan(&emailHit, &usernameHit)
	if err != nil {
		return "", err
	}
	switch {
	case emailHit:
		return "email", nil
	case usernameHit:
		return "username", nil
	default:
		return "", nil
	}
}

func (s *PostgresStore) CreateUser(ctx context.Context, in NewUser) (User, error) {
	const op = "identity.CreateUser"
	if in.ID == "" || in.UsernameNorm == "" || in.EmailNorm == "" || in.PasswordHash == "" {
		return User{}, invalid(op, "missing required field")
	}
	role := in.Role
	if role == "" {
		role = RoleUser
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.users()+` (
		     id, username, username_norm, email, email_norm, password_hash, role, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		in.ID, in.Username, in.UsernameNorm, in.Email, in.EmailNorm, in.PasswordHash, role, in.CreatedAt,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return User{}, ConflictError{Op: op, Field: field}
		}
		return User{}, err
	}

	return User{
		ID:           in.ID,
		Username:     in.Username,
		Email:        in.Email,
		Role:         role,
		FollowerIDs:  []string{},
		FollowingIDs: []string{},
		CreatedAt:    in.CreatedAt.UTC(),
	}, nil
}

func (s *PostgresStore) FindAuthByEmail(ctx context.Context, emailNorm string) (UserAuth, error) {
	var hash string
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+s.userCols("u")+`, u.password_hash
		   FROM `+s.users()+` u
		  WHERE u.email_norm = $1`,
		emailNorm,
	), &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAuth{}, notFound("identity.FindAuthByEmail")
		}
		return UserAuth{}, err
	}
	return UserAuth{User: u, PasswordHash: hash}, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+s.userCols("u")+` FROM `+s.users()+` u WHERE u.id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, notFound("identity.GetUserByID")
		}
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	return s.queryUsers(ctx,
		`SELECT `+s.userCols("u")+` FROM `+s.users()+` u ORDER BY u.created_at, u.id`)
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (User, error) {
	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.users()+`
		    SET bio = COALESCE($2, bio),
		        avatar_ref = COALESCE($3, avatar_ref)
		  WHERE id = $1`,
		id, in.Bio, in.AvatarRef,
	)
	if err != nil {
		return User{}, err
	}
	if ct.RowsAffected() == 0 {
		return User{}, notFound("identity.UpdateProfile")
	}
	return s.GetUserByID(ctx, id)
}

func (s *PostgresStore) SetRole(ctx context.Context, id, role string) error {
	ct, err := s.pool.Exec(ctx, `UPDATE `+s.users()+` SET role = $2 WHERE id = $1`, id, role)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return notFound("identity.SetRole")
	}
	return nil
}

func (s *PostgresStore) Follow(ctx context.Context, followerID, followeeID string, now time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.follows()+` (follower_id, followee_id, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (follower_id, followee_id) DO NOTHING`,
		followerID, followeeID, now,
	)
	if pgIsForeignKeyViolation(err) {
		return notFound("identity.Follow")
	}
	return err
}

func (s *PostgresStore) Unfollow(ctx context.Context, followerID, followeeID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.follows()+` WHERE follower_id = $1 AND followee_id = $2`,
		followerID, followeeID,
	)
	return err
}

func (s *PostgresStore) ListFollowers(ctx context.Context, id string) ([]User, error) {
	return s.queryUsers(ctx,
		`SELECT `+s.userCols("u")+`
		   FROM `+s.follows()+` e
		   JOIN `+s.users()+` u ON u.id = e.follower_id
		  WHERE e.followee_id = $1
		  ORDER BY u.created_at, u.id`, id)
}

func (s *PostgresStore) ListFollowing(ctx context.Context, id string) ([]User, error) {
	return s.queryUsers(ctx,
		`SELECT `+s.userCols("u")+`
		   FROM `+s.follows()+` e
		   JOIN `+s.users()+` u ON u.id = e.followee_id
		  WHERE e.follower_id = $1
		  ORDER BY u.created_at, u.id`, id)
}

func (s *PostgresStore) queryUsers(ctx context.Context, sql string, args ...any) ([]User, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// pgIdent quotes a table in the kite schema: "kite"."name".
func pgIdent(name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgIsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case c == "uq_users_email_norm", strings.Contains(c, "email"):
		return "email", true
	case c == "uq_users_username_norm", strings.Contains(c, "username"):
		return "username", true
	default:
		return "unique", true
	}
}
