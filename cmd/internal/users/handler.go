package users

import (
	"errors"
	"log/slog"
	"net/http"

	"kite/cmd/identity"
	"kite/cmd/internal/auth"
	"kite/cmd/internal/httpx"
)

// Handler serves the /api/users and /api/admin routes.
type Handler struct {
	ids          *identity.Service
	log          *slog.Logger
	maxBodyBytes int64
}

// NewHandler builds a Handler.
func NewHandler(log *slog.Logger, ids *identity.Service, maxBodyBytes int64) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{ids: ids, log: log, maxBodyBytes: maxBodyBytes}
}

// Register mounts the routes on mux behind protect. The admin listing also
// requires the admin role.
func (h *Handler) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	mux.Handle("PUT /api/users/me", protect(http.HandlerFunc(h.handleUpdateMe)))
	mux.Handle("GET /api/users/{id}", protect(http.HandlerFunc(h.handleGet)))
	mux.Handle("POST /api/users/{id}/follow", protect(http.HandlerFunc(h.handleFollow)))
	mux.Handle("DELETE /api/users/{id}/follow", protect(http.HandlerFunc(h.handleUnfollow)))
	mux.Handle("GET /api/users/{id}/followers", protect(http.HandlerFunc(h.handleFollowers)))
	mux.Handle("GET /api/users/{id}/following", protect(http.HandlerFunc(h.handleFollowing)))

	adminOnly := auth.RequireRole(identity.RoleAdmin)
	mux.Handle("GET /api/admin/users", protect(adminOnly(http.HandlerFunc(h.handleAdminList))))
}

type updateProfileRequest struct {
	Bio       *string `json:"bio"`
	AvatarRef *string `json:"avatarRef"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	u, err := h.ids.GetUserByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "users.get.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, NewProfile(u, u.ID == me.ID))
}

func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	var req updateProfileRequest
	if !httpx.DecodeOrReject(w, r, h.maxBodyBytes, &req) {
		return
	}
	u, err := h.ids.UpdateProfile(r.Context(), me.ID, identity.ProfileUpdate{Bio: req.Bio, AvatarRef: req.AvatarRef})
	if err != nil {
		h.fail(w, "users.update.fail", err)
		return
	}
	h.log.Info("users.update", "user_id", me.ID)
	httpx.WriteJSON(w, http.StatusOK, NewProfile(u, true))
}

func (h *Handler) handleFollow(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	u, err := h.ids.Follow(r.Context(), me.ID, r.PathValue("id"))
	if err != nil {
		h.fail(w, "users.follow.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, NewProfile(u, false))
}

func (h *Handler) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	u, err := h.ids.Unfollow(r.Context(), me.ID, r.PathValue("id"))
	if err != nil {
		h.fail(w, "users.unfollow.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, NewProfile(u, false))
}

func (h *Handler) handleFollowers(w http.ResponseWriter, r *http.Request) {
	us, err := h.ids.ListFollowers(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "users.followers.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProfiles(us, false))
}

func (h *Handler) handleFollowing(w http.ResponseWriter, r *http.Request) {
	us, err := h.ids.ListFollowing(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "users.following.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProfiles(us, false))
}

func (h *Handler) handleAdminList(w http.ResponseWriter, r *http.Request) {
	us, err := h.ids.ListUsers(r.Context())
	if err != nil {
		h.fail(w, "users.admin_list.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newProfiles(us, true))
}

func (h *Handler) fail(w http.ResponseWriter, event string, err error) {
	var op identity.OpError
	switch {
	case identity.IsNotFound(err):
		httpx.WriteNotFound(w)
	case identity.IsInvalidInput(err) && errors.As(err, &op):
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, op.Msg)
	default:
		httpx.WriteInternal(w, h.log, event, err)
	}
}
