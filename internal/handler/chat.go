package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/service"
)

const (
	defaultMaxUpload = 20 << 20
	maxImages        = 10
)

type ChatHandler struct {
	chat      *service.ChatService
	maxUpload int64
}

func NewChatHandler(chat *service.ChatService, maxUpload int64) *ChatHandler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &ChatHandler{chat: chat, maxUpload: maxUpload}
}

// Routes монтируется в /api/chats.
func (h *ChatHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/unread", h.Unread)
	r.Post("/{kind}/messages", h.Send)
	r.Get("/{kind}/{id}", h.Get)
	r.Delete("/{kind}/{id}", h.DeleteThread)
	r.Get("/{kind}/{id}/messages", h.Messages)
	r.Post("/{kind}/{id}/read", h.MarkRead)
	r.Post("/{kind}/{id}/archive", h.Archive)
	r.Delete("/{kind}/{id}/archive", h.Unarchive)
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	view := model.ThreadView(r.URL.Query().Get("view"))
	items, err := h.chat.Threads(r.Context(), userID, view)
	if err != nil {
		httpError(w, "chat.List", err, "failed to load chats")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type unreadResponse struct {
	Count int `json:"count"`
}

func (h *ChatHandler) Unread(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := h.chat.UnreadCount(r.Context(), userID)
	if err != nil {
		httpError(w, "chat.Unread", err, "failed to count unread chats")
		return
	}
	writeJSON(w, http.StatusOK, unreadResponse{Count: n})
}

// SendJSONRequest — текстовое сообщение без вложений (application/json).
type SendJSONRequest struct {
	RecipientID string `json:"recipient_id"`
	ReportID    string `json:"report_id"`
	Text        string `json:"text"`
}

// Send принимает multipart (recipient_id, report_id, text, images[]) или JSON без вложений.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	kind, ok := chatKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chat kind")
		return
	}
	req := service.SendRequest{Kind: kind, SenderID: userID}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form")
			return
		}
		defer r.MultipartForm.RemoveAll()
		req.RecipientID = r.FormValue("recipient_id")
		req.ReportID = r.FormValue("report_id")
		req.Text = r.FormValue("text")
		files := r.MultipartForm.File["images"]
		if len(files) > maxImages {
			writeError(w, http.StatusBadRequest, "too many images")
			return
		}
		for _, fh := range files {
			att, err := readAttachment(fh)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid image")
				return
			}
			req.Images = append(req.Images, att)
		}
	} else {
		var body SendJSONRequest
		if !decodeJSON(r, &body) {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		req.RecipientID, req.ReportID, req.Text = body.RecipientID, body.ReportID, body.Text
	}

	msg, err := h.chat.Send(r.Context(), req)
	if err != nil {
		httpError(w, "chat.Send", err, "failed to send message, try again")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func readAttachment(fh *multipart.FileHeader) (service.Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return service.Attachment{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return service.Attachment{}, err
	}
	return service.Attachment{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	kind, ok := chatKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chat kind")
		return
	}
	t, err := h.chat.Thread(r.Context(), kind, chi.URLParam(r, "id"), userID)
	if err != nil {
		httpError(w, "chat.Get", err, "failed to load chat")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	kind, ok := chatKind(chi.URLParam(r, "kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid chat kind")
		return
	}
	msgs, err := h.chat.Messages(r.Context(), kind, chi.URLParam(r, "id"), userID)
	if err != nil {
		httpError(w, "chat.Messages", err, "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// threadAction — общий каркас POST/DELETE над перепиской без тела ответа.
func (h *ChatHandler) threadAction(op string, fn func(r *http.Request, kind model.ChatKind, id, userID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		kind, ok := chatKind(chi.URLParam(r, "kind"))
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid chat kind")
			return
		}
		if err := fn(r, kind, chi.URLParam(r, "id"), userID); err != nil {
			httpError(w, op, err, "request failed, try again")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.threadAction("chat.MarkRead", func(r *http.Request, kind model.ChatKind, id, userID string) error {
		return h.chat.MarkRead(r.Context(), kind, id, userID)
	})(w, r)
}

func (h *ChatHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	h.threadAction("chat.DeleteThread", func(r *http.Request, kind model.ChatKind, id, userID string) error {
		return h.chat.DeleteThread(r.Context(), kind, id, userID)
	})(w, r)
}

func (h *ChatHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.threadAction("chat.Archive", func(r *http.Request, kind model.ChatKind, id, userID string) error {
		return h.chat.Archive(r.Context(), kind, id, userID)
	})(w, r)
}

func (h *ChatHandler) Unarchive(w http.ResponseWriter, r *http.Request) {
	h.threadAction("chat.Unarchive", func(r *http.Request, kind model.ChatKind, id, userID string) error {
		return h.chat.Unarchive(r.Context(), kind, id, userID)
	})(w, r)
}
