package app

import (
	"net/http"
	"time"
)

// routes builds the full handler: ops endpoints, the API, and the middleware chain.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /readyz", a.handleReady)
	mux.Handle("GET /metrics", a.metrics.Handler())

	protect := a.gate.RequireAuth
	a.authAPI.Register(mux, protect)
	a.users.Register(mux, protect)
	a.posts.Register(mux, protect)
	a.messages.Register(mux, protect)

	var h http.Handler = mux
	h = WithSecurityHeaders(h)
	h = WithRecover(h, a.log)
	h = WithRequestLogging(h, a.log, a.metrics)
	return h
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.cfg.DB.ReadinessRequireDB && a.pool == nil {
		http.Error(w, "db not configured", http.StatusServiceUnavailable)
		return
	}
	if a.pool != nil {
		if err := PingDB(r.Context(), a.pool, 2*time.Second); err != nil {
			a.log.Info("readyz.db.not_ready", "err", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}
