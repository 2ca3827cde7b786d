// Command migrate applies or rolls back the Kite database schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"kite/cmd/internal/app"
	"kite/cmd/internal/migrate"
)

func main() {
	if err := run(os.Args[1:]); err != nil && !errors.Is(err, flag.ErrHelp) {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbURL := fs.String("database-url", os.Getenv("KITE_DATABASE_URL"), "postgres connection string")
	command := fs.String("command", "up", "up, status or down")
	target := fs.Int64("target", 0, "version to roll back to with -command down (0 = latest only)")
	timeout := fs.Duration("timeout", 2*time.Minute, "overall deadline")
	logLevel := fs.String("log-level", "info", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbURL == "" {
		return errors.New("migrate: -database-url or KITE_DATABASE_URL is required")
	}

	logger := app.NewLogger(app.LogConfig{Level: *logLevel, Format: "text"})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := app.NewDBPool(ctx, app.DBConfig{URL: *dbURL, MaxConns: 2}, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	runner, err := migrate.New(pool, logger)
	if err != nil {
		return err
	}

	switch *command {
	case "up":
		return runner.Up(ctx)
	case "status":
		return runner.Status(ctx)
	case "down":
		return runner.Down(ctx, *target)
	default:
		return fmt.Errorf("migrate: unknown command %q", *command)
	}
}
