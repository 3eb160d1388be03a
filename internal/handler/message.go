package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/service"
)

type MessageHandler struct {
	chat *service.ChatService
}

func NewMessageHandler(chat *service.ChatService) *MessageHandler {
	return &MessageHandler{chat: chat}
}

// Routes монтируется в /api/messages.
func (h *MessageHandler) Routes(r chi.Router) {
	r.Put("/{kind}/{id}", h.Edit)
	r.Delete("/{kind}/{id}", h.Delete)
	r.Post("/{kind}/{id}/hide", h.Hide)
	r.Post("/{kind}/{id}/report", h.Report)
}

type EditMessageRequest struct {
	Text string `json:"text"`
}

type ReportMessageRequest struct {
	Reason string `json:"reason"`
}

func (h *MessageHandler) params(w http.ResponseWriter, r *http.Request) (model.ChatKind, string, string, bool) {
	userID, ok := currentUser(w, r)
	if !ok {
		return "", "", "", false
	}
	kind, ok := chatKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chat kind")
		return "", "", "", false
	}
	return kind, chi.URLParam(r, "id"), userID, true
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	kind, id, userID, ok := h.params(w, r)
	if !ok {
		return
	}
	var req EditMessageRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.chat.Edit(r.Context(), kind, id, userID, req.Text); err != nil {
		httpError(w, "message.Edit", err, "failed to edit message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	kind, id, userID, ok := h.params(w, r)
	if !ok {
		return
	}
	if err := h.chat.Delete(r.Context(), kind, id, userID); err != nil {
		httpError(w, "message.Delete", err, "failed to delete message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) Hide(w http.ResponseWriter, r *http.Request) {
	kind, id, userID, ok := h.params(w, r)
	if !ok {
		return
	}
	if err := h.chat.Hide(r.Context(), kind, id, userID); err != nil {
		httpError(w, "message.Hide", err, "failed to hide message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MessageHandler) Report(w http.ResponseWriter, r *http.Request) {
	kind, id, userID, ok := h.params(w, r)
	if !ok {
		return
	}
	var req ReportMessageRequest
	if r.ContentLength != 0 && !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.chat.ReportMessage(r.Context(), kind, id, userID, req.Reason); err != nil {
		httpError(w, "message.Report", err, "failed to report message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
