package messages

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"kite/cmd/internal/auth"
	"kite/cmd/internal/httpx"
	"kite/cmd/internal/paging"
)

// Handler serves the messages API.
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
	mux.Handle("POST /api/messages", protect(http.HandlerFunc(h.handleSend)))
	mux.Handle("GET /api/messages", protect(http.HandlerFunc(h.handleInbox)))
	mux.Handle("GET /api/messages/sent", protect(http.HandlerFunc(h.handleSent)))
	mux.Handle("GET /api/messages/{id}", protect(http.HandlerFunc(h.handleGet)))
	mux.Handle("PATCH /api/messages/{id}/read", protect(http.HandlerFunc(h.handleMarkRead)))
	mux.Handle("DELETE /api/messages/{id}", protect(http.HandlerFunc(h.handleDelete)))
}

type sendRequest struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

type messageResponse struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Content     string    `json:"content"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

type deletedResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

func toResponse(m Message) messageResponse {
	return messageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		Read:        m.Read,
		CreatedAt:   m.CreatedAt,
	}
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	var req sendRequest
	if !httpx.DecodeOrReject(w, r, h.maxBodyBytes, &req) {
		return
	}
	m, err := h.svc.Send(r.Context(), me.ID, req.RecipientID, req.Content)
	if err != nil {
		h.fail(w, "messages.send.fail", err)
		return
	}
	h.log.Info("messages.send", "message_id", m.ID, "sender_id", m.SenderID, "recipient_id", m.RecipientID)
	httpx.WriteJSON(w, http.StatusCreated, toResponse(m))
}

func (h *Handler) handleInbox(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "messages.inbox.fail", h.svc.Inbox)
}

func (h *Handler) handleSent(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "messages.sent.fail", h.svc.Sent)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, event string,
	fetch func(ctx context.Context, callerID string, page paging.Page) ([]Message, error),
) {
	me, _ := auth.IdentityFromContext(r.Context())
	page, err := paging.FromRequest(r)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeInvalidRequest, err.Error())
		return
	}
	ms, err := fetch(r.Context(), me.ID, page)
	if err != nil {
		h.fail(w, event, err)
		return
	}
	out := make([]messageResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, toResponse(m))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	m, err := h.svc.Get(r.Context(), me.ID, r.PathValue("id"))
	if err != nil {
		h.fail(w, "messages.get.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(m))
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	m, err := h.svc.MarkRead(r.Context(), me.ID, r.PathValue("id"))
	if err != nil {
		h.fail(w, "messages.read.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(m))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.IdentityFromContext(r.Context())
	id := r.PathValue("id")
	if err := h.svc.Delete(r.Context(), me.ID, id); err != nil {
		h.fail(w, "messages.delete.fail", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, deletedResponse{Message: "message deleted", ID: id})
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
