// Package migrate applies Kite's embedded SQL schema with goose.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// goose keeps its dialect and base FS in package globals.
var gooseMu sync.Mutex

// Runner applies, inspects and rolls back migrations on a pool.
type Runner struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// New returns a Runner over pool. The pool is not closed by the Runner.
func New(pool *pgxpool.Pool, log *slog.Logger) (Runner, error) {
	if pool == nil {
		return Runner{}, errors.New("migrate: nil pool")
	}
	if log == nil {
		log = slog.Default()
	}
	return Runner{pool: pool, log: log}, nil
}

// Up applies pending migrations.
func (r Runner) Up(ctx context.Context) error {
	return r.withDB(func(db *sql.DB) error {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		r.log.Info("migrate.up.start")
		if err := goose.UpContext(runCtx, db, migrationsDir); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		r.log.Info("migrate.up.done")
		return nil
	})
}

// Status logs applied and pending migrations.
func (r Runner) Status(ctx context.Context) error {
	return r.withDB(func(db *sql.DB) error {
		if err := goose.StatusContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
		return nil
	})
}

// Down rolls back the latest migration, or down to target when target > 0.
func (r Runner) Down(ctx context.Context, target int64) error {
	return r.withDB(func(db *sql.DB) error {
		runCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()

		if target > 0 {
			r.log.Info("migrate.down.start", "target", target)
			if err := goose.DownToContext(runCtx, db, migrationsDir, target); err != nil {
				return fmt.Errorf("rollback to version %d: %w", target, err)
			}
		} else {
			r.log.Info("migrate.down.start")
			if err := goose.DownContext(runCtx, db, migrationsDir); err != nil {
				return fmt.Errorf("rollback latest migration: %w", err)
			}
		}
		r.log.Info("migrate.down.done")
		return nil
	})
}

func (r Runner) withDB(fn func(*sql.DB) error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(slogGoose{r.log})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("configure goose: %w", err)
	}

	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	return fn(db)
}

// slogGoose routes goose's printf logging into slog.
type slogGoose struct{ log *slog.Logger }

func (g slogGoose) Printf(format string, v ...any) {
	g.log.Info("migrate.goose", "msg", fmt.Sprintf(format, v...))
}

func (g slogGoose) Fatalf(format string, v ...any) {
	g.log.Error("migrate.goose.fatal", "msg", fmt.Sprintf(format, v...))
}
