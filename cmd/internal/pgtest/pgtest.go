// Package pgtest provides throwaway PostgreSQL databases for integration tests.
//
// KITE_DATABASE_URL, when set, points at a server the tests may create
// databases on. Otherwise a postgres container is started once per test
// binary through testcontainers. Tests skip when neither is available, or when
// SKIP_INTEGRATION=true.
package pgtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"kite/cmd/identity/ids"
	"kite/cmd/internal/migrate"
)

var (
	adminOnce sync.Once
	adminDSN  string
	adminErr  error
)

// Pool returns a pool on a fresh, fully migrated database. The database is
// dropped when the test ends.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true")
	}

	adminOnce.Do(func() { adminDSN, adminErr = resolveAdminDSN() })
	if adminErr != nil {
		t.Skipf("postgres unavailable: %v", adminErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	admin, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		t.Skipf("postgres unreachable: %v", err)
	}
	defer func() { _ = admin.Close(context.Background()) }()

	id, err := ids.NewULID(time.Now())
	if err != nil {
		t.Fatalf("ulid: %v", err)
	}
	name := "kite_test_" + strings.ToLower(id)
	if _, err := admin.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		t.Fatalf("create database: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(adminDSN)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	cfg.ConnConfig.Database = name
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		dropDatabase(adminDSN, name)
	})

	runner, err := migrate.New(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("migrate runner: %v", err)
	}
	if err := runner.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	return pool
}

func dropDatabase(dsn, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close(context.Background()) }()
	_, _ = conn.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize()+" WITH (FORCE)")
}

func resolveAdminDSN() (string, error) {
	if dsn := strings.TrimSpace(os.Getenv("KITE_DATABASE_URL")); dsn != "" {
		return dsn, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("kite"),
		pgmodule.WithUsername("kite"),
		pgmodule.WithPassword("kite"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return "", fmt.Errorf("start postgres container: %w", err)
	}
	// The container is reaped by testcontainers when the test binary exits.
	return container.ConnectionString(ctx, "sslmode=disable")
}
