package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pawsafe/internal/metrics"
	"github.com/pawsafe/internal/middleware"
)

// Handlers — обработчики API. File и Push могут быть nil (S3 / push не настроен).
type Handlers struct {
	Chat         *ChatHandler
	Message      *MessageHandler
	Social       *SocialHandler
	Comment      *CommentHandler
	Report       *ReportHandler
	Notification *NotificationHandler
	User         *UserHandler
	File         *FileHandler
	Push         *PushHandler
	WS           *WSHandler
}

type RouterOptions struct {
	// Auth выставляет user_id в контекст (AuthServiceValidate или TrustedUserHeader).
	Auth        func(http.Handler) http.Handler
	CORSOrigins string
	RateByIP    *middleware.KeyRateLimiter
	RateByUser  *middleware.KeyRateLimiter
}

func NewRouter(h Handlers, opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Не сжимать WebSocket — иначе ResponseWriter не реализует http.Hijacker и upgrade даёт 500.
	r.Use(func(next http.Handler) http.Handler {
		compressed := chimw.Compress(5)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			compressed.ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(opts.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-Id", "X-Timestamp", "X-Signature", "X-User-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	if h.File != nil {
		r.Get("/api/files/*", h.File.Serve)
	}

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}
		r.Use(middleware.RateLimitAPI(opts.RateByIP, opts.RateByUser))

		r.Route("/api/chats", h.Chat.Routes)
		r.Route("/api/messages", h.Message.Routes)
		r.Route("/api/{container}/{id}/comments", h.Comment.Routes)

		r.Get("/api/blocks", h.Social.ListBlocked)
		r.Post("/api/blocks/{userId}", h.Social.Block)
		r.Delete("/api/blocks/{userId}", h.Social.Unblock)
		r.Post("/api/friends/requests/{userId}", h.Social.SendFriendRequest)
		r.Post("/api/friends/requests/{userId}/accept", h.Social.AcceptFriendRequest)
		r.Post("/api/posts", h.Social.CreatePost)
		r.Get("/api/posts/{id}", h.Social.GetPost)
		r.Post("/api/posts/{id}/like", h.Social.TogglePostLike)

		r.Post("/api/reports", h.Report.Submit)
		r.Get("/api/reports/{id}", h.Report.Get)
		r.Post("/api/reports/{id}/resolve", h.Report.Resolve)

		r.Get("/api/notifications", h.Notification.List)
		r.Post("/api/notifications/{id}/read", h.Notification.MarkRead)

		r.Get("/api/users/me", h.User.GetProfile)
		r.Put("/api/users/me", h.User.UpdateProfile)
		r.Get("/api/users/{id}", h.User.GetUser)

		if h.Push != nil {
			r.Post("/api/push/subscribe", h.Push.Subscribe)
			r.Delete("/api/push/subscribe", h.Push.Unsubscribe)
		}
		if h.WS != nil {
			r.Get("/ws", h.WS.ServeWS)
		}
	})
	return r
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
