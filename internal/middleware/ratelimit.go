package middleware

import (
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pawsafe/internal/logger"
	"golang.org/x/time/rate"
)

const (
	limiterCacheSize = 65536
	limiterIdleTTL   = 3 * time.Minute
)

// KeyRateLimiter — token bucket на ключ (IP или пользователь). Неактивные ключи вытесняются через limiterIdleTTL.
type KeyRateLimiter struct {
	limiters *lru.LRU[string, *rate.Limiter]
	r        rate.Limit
	burst    int
}

// NewKeyRateLimiter: r — запросов в секунду, burst — допустимый всплеск.
func NewKeyRateLimiter(r rate.Limit, burst int) *KeyRateLimiter {
	return &KeyRateLimiter{
		limiters: lru.NewLRU[string, *rate.Limiter](limiterCacheSize, nil, limiterIdleTTL),
		r:        r,
		burst:    burst,
	}
}

func (l *KeyRateLimiter) Allow(key string) bool {
	lim, ok := l.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.r, l.burst)
	}
	// Add продлевает TTL записи.
	l.limiters.Add(key, lim)
	return lim.Allow()
}

// RateLimitAPI ограничивает запросы по IP и по user_id (если он уже в контексте). 429 при превышении.
// Ставить после RealIP и после аутентификации, иначе лимит по пользователю не сработает.
func RateLimitAPI(byIP, byUser *KeyRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if byIP != nil && !byIP.Allow(ip) {
				logger.Debugf("rate limit ip=%s path=%s", ip, r.URL.Path)
				writeJSONError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			if userID := GetUserID(r.Context()); userID != "" && byUser != nil {
				if !byUser.Allow("u:" + userID) {
					logger.Debugf("rate limit user=%s path=%s", userID, r.URL.Path)
					writeJSONError(w, http.StatusTooManyRequests, "too many requests")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
