package handler

import (
	"net/http"

	"github.com/pawsafe/internal/push"
)

// PushHandler проксирует подписку на push-уведомления в push-сервис.
type PushHandler struct {
	client *push.Client
}

func NewPushHandler(client *push.Client) *PushHandler {
	return &PushHandler{client: client}
}

// SubscribeRequest — тело от фронта (subscription из PushManager.getSubscription()).
type SubscribeRequest struct {
	Subscription push.PushSubscription `json:"subscription"`
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !h.client.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "push service not configured")
		return
	}
	var req SubscribeRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Subscription.Endpoint == "" || req.Subscription.Keys.P256dh == "" || req.Subscription.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "subscription.endpoint and subscription.keys required")
		return
	}
	if err := h.client.Subscribe(r.Context(), userID, req.Subscription); err != nil {
		httpError(w, "push.Subscribe", err, "failed to subscribe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !h.client.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "push service not configured")
		return
	}
	var req UnsubscribeRequest
	if !decodeJSON(r, &req) || req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint required")
		return
	}
	if err := h.client.Unsubscribe(r.Context(), userID, req.Endpoint); err != nil {
		httpError(w, "push.Unsubscribe", err, "failed to unsubscribe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
