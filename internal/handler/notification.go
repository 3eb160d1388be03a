package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pawsafe/internal/repository"
)

const defaultNotificationsLimit = 50

type NotificationHandler struct {
	notifications *repository.NotificationRepository
}

func NewNotificationHandler(notifications *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", defaultNotificationsLimit)
	if limit <= 0 || limit > 200 {
		limit = defaultNotificationsLimit
	}
	list, err := h.notifications.ListForUser(r.Context(), userID, limit)
	if err != nil {
		httpError(w, "notification.List", err, "failed to load notifications")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		httpError(w, "notification.MarkRead", err, "failed to update notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
