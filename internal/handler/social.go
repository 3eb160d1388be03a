package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/repository"
	"github.com/pawsafe/internal/service"
)

// SocialHandler — блокировки, заявки в друзья и посты.
type SocialHandler struct {
	social *service.SocialService
	posts  *repository.PostRepository
}

func NewSocialHandler(social *service.SocialService, posts *repository.PostRepository) *SocialHandler {
	return &SocialHandler{social: social, posts: posts}
}

func (h *SocialHandler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	list, err := h.social.ListBlocked(r.Context(), userID)
	if err != nil {
		httpError(w, "social.ListBlocked", err, "failed to load blocked users")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *SocialHandler) Block(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.social.Block(r.Context(), userID, chi.URLParam(r, "userId")); err != nil {
		httpError(w, "social.Block", err, "failed to block user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SocialHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.social.Unblock(r.Context(), userID, chi.URLParam(r, "userId")); err != nil {
		httpError(w, "social.Unblock", err, "failed to unblock user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SocialHandler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.social.SendFriendRequest(r.Context(), userID, chi.URLParam(r, "userId")); err != nil {
		httpError(w, "social.SendFriendRequest", err, "failed to send friend request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SocialHandler) AcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.social.AcceptFriendRequest(r.Context(), userID, chi.URLParam(r, "userId")); err != nil {
		httpError(w, "social.AcceptFriendRequest", err, "failed to accept friend request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type CreatePostRequest struct {
	Text   string   `json:"text"`
	Images []string `json:"images"`
}

func (h *SocialHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req CreatePostRequest
	if !decodeJSON(r, &req) || req.Text == "" {
		writeError(w, http.StatusBadRequest, "text required")
		return
	}
	p := &model.Post{UserID: userID, Text: req.Text, Images: req.Images}
	if err := h.posts.Create(r.Context(), p); err != nil {
		httpError(w, "social.CreatePost", err, "failed to create post")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *SocialHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.posts.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, "social.GetPost", err, "failed to load post")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type likeResponse struct {
	Liked bool `json:"liked"`
}

func (h *SocialHandler) TogglePostLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	liked, err := h.social.TogglePostLike(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		httpError(w, "social.TogglePostLike", err, "failed to like post")
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Liked: liked})
}
