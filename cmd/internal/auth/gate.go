package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kite/cmd/identity"
	"kite/cmd/internal/httpx"
	"kite/cmd/internal/metrics"
	"kite/cmd/security/token"
)

// IdentityResolver loads the identity a token names.
type IdentityResolver interface {
	GetUserByID(ctx context.Context, id string) (identity.User, error)
}

// Gate authenticates requests.
type Gate struct {
	tokens  token.Service
	users   IdentityResolver
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithMetrics records rejections.
func WithMetrics(m *metrics.Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate builds a Gate.
func NewGate(log *slog.Logger, tokens token.Service, users IdentityResolver, opts ...GateOption) *Gate {
	if log == nil {
		log = slog.Default()
	}
	g := &Gate{
		tokens: tokens,
		users:  users,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Authenticate resolves the caller of r. Failures wrap ErrUnauthenticated as a
// RejectError; any other error comes from the identity store.
func (g *Gate) Authenticate(r *http.Request) (identity.User, error) {
	raw := bearerToken(r)
	if raw == "" {
		return identity.User{}, RejectError{Reason: ReasonNoToken}
	}

	claims, err := g.tokens.Verify(raw, g.now())
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return identity.User{}, RejectError{Reason: ReasonExpiredToken}
		}
		return identity.User{}, RejectError{Reason: ReasonInvalidToken}
	}

	u, err := g.users.GetUserByID(r.Context(), claims.SubjectID)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.User{}, RejectError{Reason: ReasonUnknownSubject}
		}
		return identity.User{}, err
	}
	return u, nil
}

// RequireAuth admits only requests carrying a valid token for an existing identity.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := g.Authenticate(r)
		if err != nil {
			var rej RejectError
			if !errors.As(err, &rej) {
				httpx.WriteInternal(w, g.log, "auth.gate.resolve.fail", err)
				return
			}
			g.metrics.GateRejected(rej.Reason)
			g.log.Debug("auth.gate.reject", "reason", rej.Reason, "path", r.URL.Path)

			msg := "invalid token"
			if rej.Reason == ReasonNoToken {
				msg = "no token"
			}
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthenticated, msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), u)))
	})
}

// CheckRole returns ErrForbidden unless u holds one of roles.
func CheckRole(u identity.User, roles ...string) error {
	for _, role := range roles {
		if u.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %q", ErrForbidden, u.Role)
}

// RequireRole admits identities holding one of roles. It must run behind RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := IdentityFromContext(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthenticated, "no token")
				return
			}
			if err := CheckRole(u, roles...); err != nil {
				httpx.WriteError(w, http.StatusForbidden, httpx.CodeForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, tok, ok := strings.Cut(raw, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}
