package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/pawsafe/internal/blob"
	"github.com/pawsafe/internal/chatid"
	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/middleware"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/repository"
	"github.com/pawsafe/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func decodeJSON(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

// errorStatus — единое соответствие ошибок сервиса HTTP-статусам.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		return http.StatusBadRequest, "message is empty"
	case errors.Is(err, service.ErrUploadFailed):
		return http.StatusBadRequest, "no image could be uploaded, try again"
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, chatid.ErrMissingParticipant):
		return http.StatusBadRequest, "invalid input"
	case errors.Is(err, blob.ErrTypeNotAllowed), errors.Is(err, blob.ErrContentMismatch):
		return http.StatusBadRequest, "only images are allowed"
	case errors.Is(err, service.ErrBlocked):
		return http.StatusForbidden, "you can't message this user"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrReportResolved):
		return http.StatusConflict, "this report has been resolved"
	case errors.Is(err, service.ErrMessageDeleted):
		return http.StatusConflict, "message was deleted"
	case errors.Is(err, service.ErrReportNotFound):
		return http.StatusNotFound, "report not found"
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, blob.ErrNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, ""
	}
}

// httpError пишет ответ по ошибке; для 500 в лог уходит op, клиенту — fallback.
func httpError(w http.ResponseWriter, op string, err error, fallback string) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("%s: %v", op, err)
		msg = fallback
	}
	writeError(w, status, msg)
}

// currentUser возвращает id из контекста или отвечает 401.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return userID, true
}

func chatKind(s string) (model.ChatKind, bool) {
	k := model.ChatKind(s)
	return k, k.Valid()
}
