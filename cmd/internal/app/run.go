package app

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
)

// Run is the CLI entrypoint used by cmd/kite.
// It returns an error instead of calling os.Exit so defers run.
func Run(args []string) error {
	fs := flag.NewFlagSet("kite", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file (default $KITE_CONFIG)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}
	log := NewLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
