// Package authapi serves registration, login and the caller's own profile.
package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"kite/cmd/identity"
	"kite/cmd/internal/auth"
	"kite/cmd/internal/httpx"
	"kite/cmd/internal/metrics"
	"kite/cmd/internal/ratelimit"
	"kite/cmd/internal/users"
	"kite/cmd/security/token"
)

// Handler wires HTTP auth endpoints to the identity and token services.
type Handler struct {
	log *slog.Logger
	cfg Config

	ids    *identity.Service
	tokens token.Service

	limiter ratelimit.Limiter
	metrics *metrics.Metrics
	now     func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithLimiter enables per-IP limits on register and login.
func WithLimiter(l ratelimit.Limiter) HandlerOption {
	return func(h *Handler) { h.limiter = l }
}

// WithMetrics counts rate-limit rejections.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithClock overrides the token issue time source.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, ids *identity.Service, tokens token.Service, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if ids == nil || tokens == nil {
		return nil, errors.New("authapi: identity and token services are required")
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:    log,
		cfg:    cfg,
		ids:    ids,
		tokens: tokens,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires auth routes onto mux. protect guards the routes that need an identity.
func (h *Handler) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	registerLimit := h.limit(ratelimit.Rule{Route: "auth.register", Limit: h.cfg.RegisterMax, Window: h.cfg.RegisterWindow})
	loginLimit := h.limit(ratelimit.Rule{Route: "auth.login", Limit: h.cfg.LoginMax, Window: h.cfg.LoginWindow})

	mux.Handle("POST /api/auth/register", registerLimit(http.HandlerFunc(h.handleRegister)))
	mux.Handle("POST /api/auth/login", loginLimit(http.HandlerFunc(h.handleLogin)))
	mux.Handle("GET /api/auth/me", protect(http.HandlerFunc(h.handleMe)))
}

func (h *Handler) limit(rule ratelimit.Rule) func(http.Handler) http.Handler {
	return ratelimit.Middleware(h.limiter, rule, h.cfg.TrustProxy, httpx.WriteRateLimited, h.metrics.RateLimited)
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httpx.DecodeOrReject(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}

	u, err := h.ids.Register(r.Context(), identity.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		var op identity.OpError
		switch {
		case identity.IsConflict(err):
			field := identity.ConflictField(err)
			h.auditRegisterRejected(r, "duplicate_"+field)
			httpx.WriteError(w, http.StatusBadRequest, httpx.CodeConflict, conflictMessage(field))
		case identity.IsInvalidInput(err) && errors.As(err, &op):
			h.auditRegisterRejected(r, "invalid_input")
			httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, op.Msg)
		default:
			httpx.WriteInternal(w, h.log, "auth.register.fail", err)
		}
		return
	}

	issued, err := h.tokens.Issue(u.ID, h.now())
	if err != nil {
		httpx.WriteInternal(w, h.log, "auth.register.issue_token.fail", err)
		return
	}

	h.auditRegisterSuccess(r, u.ID)
	httpx.WriteJSON(w, http.StatusCreated, authResponse{ID: u.ID, Username: u.Username, Email: u.Email, Token: issued.Token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpx.DecodeOrReject(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}

	// Missing fields get the same answer as wrong ones.
	u, err := h.ids.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.auditLoginFailed(r)
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeInvalidCredentials, "invalid credentials")
			return
		}
		httpx.WriteInternal(w, h.log, "auth.login.fail", err)
		return
	}

	issued, err := h.tokens.Issue(u.ID, h.now())
	if err != nil {
		httpx.WriteInternal(w, h.log, "auth.login.issue_token.fail", err)
		return
	}

	h.auditLoginSuccess(r, u.ID)
	httpx.WriteJSON(w, http.StatusOK, authResponse{ID: u.ID, Username: u.Username, Email: u.Email, Token: issued.Token})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthenticated, "no token")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, users.NewProfile(u, true))
}

func conflictMessage(field string) string {
	switch field {
	case "username":
		return "username already taken"
	case "email":
		return "email already registered"
	default:
		return "user already exists"
	}
}
