package middleware

import (
	"net"
	"net/http"
	"strings"
)

// InternalSecretHeader — заголовок с общим секретом для вызовов между сервисами.
const InternalSecretHeader = "X-Internal-Secret"

// InternalOnly пропускает запрос с приватного IP или с заголовком InternalSecretHeader == secret.
// /api/notify push-сервиса вызывается только API из той же сети.
func InternalOnly(secret string) func(http.Handler) http.Handler {
	secret = strings.TrimSpace(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" && r.Header.Get(InternalSecretHeader) == secret {
				next.ServeHTTP(w, r)
				return
			}
			if ip := clientIP(r); ip != "" && isPrivateIP(ip) {
				next.ServeHTTP(w, r)
				return
			}
			writeJSONError(w, http.StatusForbidden, "forbidden")
		})
	}
}

// clientIP: X-Real-Ip, затем первый адрес X-Forwarded-For, затем RemoteAddr.
func clientIP(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip == "" {
		ip = r.Header.Get("X-Forwarded-For")
		if idx := strings.Index(ip, ","); idx > 0 {
			ip = ip[:idx]
		}
		ip = strings.TrimSpace(ip)
	}
	if ip == "" {
		ip, _, _ = net.SplitHostPort(r.RemoteAddr)
		if ip == "" {
			ip = r.RemoteAddr
		}
	}
	return ip
}

func isPrivateIP(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}
