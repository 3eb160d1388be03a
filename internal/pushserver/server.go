// Package pushserver — HTTP-сервис Web Push: хранит подписки и рассылает уведомления через VAPID.
package pushserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/middleware"
	"github.com/pawsafe/internal/push"
)

const notifyTimeout = 10 * time.Second

// SendFunc отправляет одно уведомление; по умолчанию webpush.SendNotificationWithContext.
type SendFunc func(ctx context.Context, payload []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

type Server struct {
	store     SubscriptionStore
	vapid     *webpush.Options
	publicKey string
	send      SendFunc
	secret    string
}

// New создаёт сервер. keys == nil или неполные — подписки принимаются, отправка отключена.
func New(store SubscriptionStore, keys *push.VAPIDKeys, subscriber, internalSecret string) *Server {
	s := &Server{store: store, send: webpush.SendNotificationWithContext, secret: internalSecret}
	if keys.Complete() {
		s.publicKey = keys.PublicKey
		s.vapid = &webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  keys.PublicKey,
			VAPIDPrivateKey: keys.PrivateKey,
			TTL:             30,
		}
	}
	return s
}

// WithSender подменяет отправку (тесты).
func (s *Server) WithSender(send SendFunc) *Server {
	s.send = send
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	r.Use(middleware.RequestLog)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/api/vapid-public", s.handleVAPIDPublic)
	r.Route("/api", func(r chi.Router) {
		r.Post("/subscribe", s.handleSubscribe)
		r.Delete("/subscribe", s.handleUnsubscribe)
		r.With(middleware.InternalOnly(s.secret)).Post("/notify", s.handleNotify)
	})
	return r
}

func (s *Server) handleVAPIDPublic(w http.ResponseWriter, r *http.Request) {
	if s.publicKey == "" {
		http.Error(w, "push not configured", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(s.publicKey))
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req push.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	sub := req.Subscription
	if req.UserID == "" || sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		http.Error(w, "user_id and subscription (endpoint, keys.p256dh, keys.auth) required", http.StatusBadRequest)
		return
	}
	if err := s.store.Add(r.Context(), req.UserID, sub); err != nil {
		logger.Errorf("subscribe: %v", err)
		http.Error(w, "failed to save subscription", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || req.Endpoint == "" {
		http.Error(w, "user_id and endpoint required", http.StatusBadRequest)
		return
	}
	if err := s.store.Remove(r.Context(), req.UserID, req.Endpoint); err != nil {
		logger.Errorf("unsubscribe: %v", err)
		http.Error(w, "failed to remove subscription", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNotify рассылает уведомление по всем подпискам; 404/410 от push-провайдера удаляют подписку.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req push.NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), notifyTimeout)
	defer cancel()
	subs, err := s.store.List(ctx, req.UserID)
	if err != nil {
		logger.Errorf("notify: %v", err)
		http.Error(w, "failed to get subscriptions", http.StatusInternalServerError)
		return
	}
	if s.vapid == nil || len(subs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	payload, err := json.Marshal(map[string]any{"title": req.Title, "body": req.Body, "data": req.Data})
	if err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	for _, sub := range subs {
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		}
		resp, err := s.send(ctx, payload, wpSub, s.vapid)
		if err != nil {
			logger.Errorf("send %s: %v", shortEndpoint(sub.Endpoint), err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
			if err := s.store.Remove(ctx, req.UserID, sub.Endpoint); err != nil {
				logger.Errorf("remove expired subscription: %v", err)
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func shortEndpoint(e string) string {
	return e[:min(50, len(e))]
}
