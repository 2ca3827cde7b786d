package posts

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"kite/cmd/internal/auth"
	"kite/cmd/internal/httpx"
	"kite/cmd/internal/paging"
)

// Handler serves the posts API.
type Handler struct {
	svc          *Service
	log          *slog.Logger
	maxBodyBytes int64
}

// NewHandler builds a Handler.
func NewHandler(log *slog.Logger, svc *Service, maxBodyBytes int64) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log, maxBodyBytes: maxBodyBytes}
}

// Register mounts the routes on mux, each wrapped by protect.
func (h *Handler) Register(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	routes := map[string]http.HandlerFunc{
		"POST /api/posts":                             h.handleCreate,
		"GET /api/posts":                              h.handleList,
		"GET /api/posts/{id}":                         h.handleGet,
		"PUT /api/posts/{id}":                         h.handleUpdate,
		"DELETE /api/posts/{id}":                      h.handleDelete,
		"POST /api/posts/{id}/like":                   h.handleLike,
		"DELETE /api/posts/{id}/like":                 h.handleUnlike,
		"POST /api/posts/{id}/comments":               h.handleAddComment,
		"DELETE /api/posts/{id}/comments/{commentID}": h.handleDeleteComment,
		"GET /api/users/{id}/posts":                   h.handleListByAuthor,
	}
	for pattern, fn := range routes {
		mux.Handle(pattern, protect(fn))
	}
}

type postRequest struct {
	Content  string `json:"content"`
	MediaRef string `json:"mediaRef"`
}

type commentRequest struct {
	Text string `json:"text"`
}

type commentResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type postResponse struct {
	ID        string            `json:"id"`
	AuthorID  string            `json:"authorId"`
	Content   string            `json:"content"`
	MediaRef  string            `json:"mediaRef,omitempty"`
	LikerIDs  []string          `json:"likerIds"`
	Comments  []commentResponse `json:"comments"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt *time.Time        `json:"updatedAt,omitempty"`
}

type deletedResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

func toPostResponse(p Post) postResponse {
	comments := make([]commentResponse, 0, len(p.Comments))
	for _, c := range p.Comments {
		comments = append(comments, commentResponse{ID: c.ID, AuthorID: c.AuthorID, Text: c.Text, CreatedAt: c.CreatedAt})
	}
	likers := p.LikerIDs
	if likers == nil {
		likers = []string{}
	}
	return postResponse{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Content:   p.Content,
		MediaRef:  p.MediaRef,
		LikerIDs:  likers,
		Comments:  comments,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toPostResponses(ps []Post) []postResponse {
	out := make([]postResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPostResponse(p))
	}
	return out
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	var req postRequest
	if !httpx.DecodeOrReject(w, r, h.maxBodyBytes, &req) {
		return
	}
	p, err := h.svc.Create(r.Context(), me.ID, Input{Content: req.Content, MediaRef: req.MediaRef})
	if err != nil {
		h.fail(w, "posts.create.fail", err)
		return
	}
	h.log.Info("posts.create", "post_id", p.ID, "author_id", me.ID)
	httpx.WriteJSON(w, http.StatusCreated, toPostResponse(p))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, err := paging.FromRequest(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
		return
	}
	ps, err := h.svc.List(r.Context(), page)
	if err != nil {
		h.fail(w, "posts.list.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPostResponses(ps))
}

func (h *Handler) handleListByAuthor(w http.ResponseWriter, r *http.Request) {
	page, err := paging.FromRequest(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
		return
	}
	ps, err := h.svc.ListByAuthor(r.Context(), r.PathValue("id"), page)
	if err != nil {
		h.fail(w, "posts.list_by_author.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPostResponses(ps))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "posts.get.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPostResponse(p))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	var req postRequest
	if !httpx.DecodeOrReject(w, r, h.maxBodyBytes, &req) {
		return
	}
	p, err := h.svc.Update(r.Context(), me.ID, r.PathValue("id"), Input{Content: req.Content, MediaRef: req.MediaRef})
	if err != nil {
		h.fail(w, "posts.update.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPostResponse(p))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	id := r.PathValue("id")
	if err := h.svc.Delete(r.Context(), me.ID, id); err != nil {
		h.fail(w, "posts.delete.fail", err)
		return
	}
	h.log.Info("posts.delete", "post_id", id, "author_id", me.ID)
	httpx.WriteJSON(w, http.StatusOK, deletedResponse{Message: "post deleted", ID: id})
}

func (h *Handler) handleLike(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	p, err := h.svc.Like(r.Context(), me.ID, r.PathValue("id"))
	if err != nil {
		h.fail(w, "posts.like.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPostResponse(p))
}

func (h *Handler) handleUnlike(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	p, err := h.svc.Unlike(r.Context(), me.ID, r.PathValue("id"))
	if err != nil {
		h.fail(w, "posts.unlike.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPostResponse(p))
}

func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	var req commentRequest
	if !httpx.DecodeOrReject(w, r, h.maxBodyBytes, &req) {
		return
	}
	p, err := h.svc.AddComment(r.Context(), me.ID, r.PathValue("id"), req.Text)
	if err != nil {
		h.fail(w, "posts.comment.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toPostResponse(p))
}

func (h *Handler) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	p, err := h.svc.DeleteComment(r.Context(), me.ID, r.PathValue("id"), r.PathValue("commentID"))
	if err != nil {
		h.fail(w, "posts.comment.delete.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toPostResponse(p))
}

func (h *Handler) fail(w http.ResponseWriter, event string, err error) {
	var in InputError
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.WriteNotFound(w)
	case errors.As(err, &in):
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, in.Msg)
	default:
		httpx.WriteInternal(w, h.log, event, err)
	}
}
