package authapi

import (
	"log/slog"
	"net/http"
	"strings"

	"kite/cmd/internal/ratelimit"
)

// audit logs an auth event with the caller's address and user agent.
// Emails and passwords never reach these records.
func (h *Handler) audit(r *http.Request, level slog.Level, action string, attrs ...any) {
	base := []any{
		"ip", ratelimit.ClientIP(r, h.cfg.TrustProxy),
		"user_agent", strings.TrimSpace(r.UserAgent()),
	}
	h.log.Log(r.Context(), level, action, append(base, attrs...)...)
}

func (h *Handler) auditRegisterSuccess(r *http.Request, userID string) {
	h.audit(r, slog.LevelInfo, "auth.register.success", "user_id", userID)
}

func (h *Handler) auditRegisterRejected(r *http.Request, reason string) {
	h.audit(r, slog.LevelWarn, "auth.register.rejected", "reason", reason)
}

func (h *Handler) auditLoginSuccess(r *http.Request, userID string) {
	h.audit(r, slog.LevelInfo, "auth.login.success", "user_id", userID)
}

func (h *Handler) auditLoginFailed(r *http.Request) {
	h.audit(r, slog.LevelWarn, "auth.login.failed")
}
