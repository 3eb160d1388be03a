package handler

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/repository"
)

const maxNameLen = 64

// UserHandler — профиль текущего пользователя (справочник для упоминаний и списка чатов).
type UserHandler struct {
	userRepo *repository.UserRepository
}

func NewUserHandler(userRepo *repository.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		httpError(w, "user.GetProfile", err, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, "user.GetUser", err, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user.Snapshot())
}

type UpdateProfileRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

// UpdateProfile создаёт или обновляет профиль; флаг администратора через API не меняется.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.Name == "" || utf8.RuneCountInString(req.Name) > maxNameLen || utf8.RuneCountInString(req.DisplayName) > maxNameLen {
		writeError(w, http.StatusBadRequest, "name must be 1-64 characters")
		return
	}

	u := &model.User{ID: userID}
	existing, err := h.userRepo.GetByID(r.Context(), userID)
	switch {
	case err == nil:
		u = existing
	case !errors.Is(err, repository.ErrNotFound):
		httpError(w, "user.UpdateProfile", err, "failed to update profile")
		return
	}
	u.Name = req.Name
	u.DisplayName = req.DisplayName
	u.AvatarURL = strings.TrimSpace(req.AvatarURL)
	if err := h.userRepo.Upsert(r.Context(), u); err != nil {
		httpError(w, "user.UpdateProfile", err, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
