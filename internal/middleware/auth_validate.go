package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pawsafe/internal/logger"
)

// AuthServiceValidate вызывает внешний сервис авторизации для проверки сессии (X-Session-Id, X-Timestamp, X-Signature).
// Для WebSocket те же параметры принимаются из query.
func AuthServiceValidate(authServiceURL string, client *http.Client) func(http.Handler) http.Handler {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	authServiceURL = strings.TrimSuffix(authServiceURL, "/")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := headerOrQuery(r, "X-Session-Id", "session_id")
			timestamp := headerOrQuery(r, "X-Timestamp", "timestamp")
			signature := headerOrQuery(r, "X-Signature", "signature")
			if sessionID == "" || timestamp == "" || signature == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			var body []byte
			if r.Body != nil {
				var err error
				body, err = io.ReadAll(r.Body)
				if err != nil {
					writeJSONError(w, http.StatusBadRequest, "bad request")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}
			bodyForSignature := string(body)
			// Клиент подписывает multipart-запросы с пустым телом.
			if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
				bodyForSignature = ""
			}
			jsonBody, _ := json.Marshal(map[string]string{
				"session_id": sessionID,
				"timestamp":  timestamp,
				"signature":  signature,
				"method":     r.Method,
				"path":       r.URL.Path,
				"body":       bodyForSignature,
			})
			req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, authServiceURL+"/internal/validate", bytes.NewReader(jsonBody))
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "internal error")
				return
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := client.Do(req)
			if err != nil {
				logger.Errorf("auth validate session=%s: %v", MaskSessionID(sessionID), err)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				logger.Debugf("auth validate session=%s: status %d", MaskSessionID(sessionID), resp.StatusCode)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			var result struct {
				UserID string `json:"user_id"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.UserID == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), result.UserID)))
		})
	}
}

// TrustedUserHeader берёт пользователя из X-User-Id (или ?user_id=). Только для -dev и тестов:
// в проде идентичность даёт AuthServiceValidate.
func TrustedUserHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(headerOrQuery(r, "X-User-Id", "user_id"))
		if userID == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func headerOrQuery(r *http.Request, header, query string) string {
	if v := r.Header.Get(header); v != "" {
		return v
	}
	return r.URL.Query().Get(query)
}
