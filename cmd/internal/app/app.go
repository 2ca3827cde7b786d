// Package app wires the Kite server runtime: config, logging, stores, HTTP routes and lifecycle.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"kite/cmd/identity"
	"kite/cmd/internal/auth"
	authapi "kite/cmd/internal/auth/api"
	"kite/cmd/internal/messages"
	"kite/cmd/internal/metrics"
	"kite/cmd/internal/posts"
	"kite/cmd/internal/ratelimit"
	"kite/cmd/internal/users"
	"kite/cmd/security/password"
	"kite/cmd/security/token"
)

// App is the Kite server runtime. It owns the pool, the limiter and the HTTP server.
type App struct {
	cfg Config
	log Logger

	pool    *pgxpool.Pool
	limiter ratelimit.Limiter
	metrics *metrics.Metrics
	gate    *auth.Gate

	authAPI  *authapi.Handler
	users    *users.Handler
	posts    *posts.Handler
	messages *messages.Handler

	handler http.Handler
}

// Option adjusts construction; used by tests and embedding programs.
type Option func(*options)

type options struct {
	password *password.Config
	now      func() time.Time
}

// WithPasswordConfig replaces the password settings loaded from the environment.
func WithPasswordConfig(cfg password.Config) Option {
	return func(o *options) { o.password = &cfg }
}

// WithClock overrides the time source of every service.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New constructs a fully wired App. An empty database URL selects the in-memory stores.
func New(ctx context.Context, cfg Config, log Logger, opts ...Option) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.Log)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}

	pw := password.DefaultConfig()
	if o.password != nil {
		pw = *o.password
	} else {
		var err error
		if pw, err = password.FromEnv(); err != nil {
			return nil, err
		}
	}

	tokens, err := token.New(cfg.Token.serviceConfig())
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log, metrics: metrics.New()}

	st, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := identity.NewService(st.identity, pw,
		identity.WithAdminEmails(cfg.AdminEmails),
		identity.WithClock(o.now),
	)
	if err != nil {
		a.closePool()
		return nil, err
	}

	if a.limiter, err = a.openLimiter(ctx); err != nil {
		a.closePool()
		return nil, err
	}

	a.gate = auth.NewGate(log, tokens, ids, auth.WithMetrics(a.metrics), auth.WithClock(o.now))

	authCfg := authapi.Config{
		TrustProxy:     cfg.HTTP.TrustProxy,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		RegisterMax:    cfg.Auth.RegisterMax,
		RegisterWindow: cfg.Auth.RegisterWindow,
		LoginMax:       cfg.Auth.LoginMax,
		LoginWindow:    cfg.Auth.LoginWindow,
	}
	a.authAPI, err = authapi.NewHandler(log, ids, tokens, authCfg,
		authapi.WithLimiter(a.limiter),
		authapi.WithMetrics(a.metrics),
		authapi.WithClock(o.now),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.users = users.NewHandler(log, ids, cfg.HTTP.MaxBodyBytes)
	a.posts = posts.NewHandler(log, posts.NewService(st.posts, o.now), cfg.HTTP.MaxBodyBytes)
	a.messages = messages.NewHandler(log, messages.NewService(st.messages, ids, o.now), cfg.HTTP.MaxBodyBytes)

	a.handler = a.routes()
	return a, nil
}

// Handler returns the complete HTTP handler, middleware included.
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: a.cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
		IdleTimeout:       a.cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:    a.cfg.HTTP.MaxHeaderBytes,
	}

	a.log.Info("server.start", "addr", a.cfg.HTTP.Addr, "db_enabled", a.pool != nil, "token_format", a.cfg.Token.Format)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		_ = a.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
	}
	if cerr := a.Close(); cerr != nil {
		a.log.Error("store.close.fail", "err", cerr)
	}

	a.log.Info("server.stopped")
	return err
}

// Close releases the limiter and the database pool.
func (a *App) Close() error {
	var err error
	if a.limiter != nil {
		err = a.limiter.Close()
		a.limiter = nil
	}
	a.closePool()
	return err
}

func (a *App) closePool() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

type stores struct {
	identity identity.Store
	posts    posts.Store
	messages messages.Store
}

// openStores decides between Postgres-backed persistence and the in-memory dev stores.
// The app owns the pool; the stores never close it.
func (a *App) openStores(ctx context.Context) (stores, error) {
	if a.cfg.DB.URL == "" {
		a.log.Info("db.disabled.inmemory_store")
		return stores{
			identity: identity.NewMemoryStore(),
			posts:    posts.NewMemoryStore(),
			messages: messages.NewMemoryStore(),
		}, nil
	}

	pool, err := NewDBPool(ctx, a.cfg.DB, a.log)
	if err != nil {
		return stores{}, err
	}
	a.pool = pool
	a.log.Info("db.enabled.postgres_store", "auto_migrate", a.cfg.DB.AutoMigrate)

	idStore, err := identity.NewPostgresStore(pool)
	if err != nil {
		a.closePool()
		return stores{}, err
	}
	postStore, err := posts.NewPostgresStore(pool)
	if err != nil {
		a.closePool()
		return stores{}, err
	}
	msgStore, err := messages.NewPostgresStore(pool)
	if err != nil {
		a.closePool()
		return stores{}, err
	}
	return stores{identity: idStore, posts: postStore, messages: msgStore}, nil
}

func (a *App) openLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	if a.cfg.Redis.Addr == "" {
		return ratelimit.NewMemoryLimiter(), nil
	}
	l, err := ratelimit.DialRedis(ctx, a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB, a.log)
	if err != nil {
		return nil, err
	}
	a.log.Info("ratelimit.redis", "addr", a.cfg.Redis.Addr)
	return l, nil
}
