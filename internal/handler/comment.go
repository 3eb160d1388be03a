package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/service"
)

type CommentHandler struct {
	comments *service.CommentService
}

func NewCommentHandler(comments *service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// Routes монтируется в /api/{container}/{id}/comments, container ∈ posts|reports.
func (h *CommentHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Add)
	r.Put("/{commentId}", h.Edit)
	r.Delete("/{commentId}", h.Delete)
	r.Post("/{commentId}/like", h.Like)
}

func commentTarget(r *http.Request) (model.CommentTarget, bool) {
	t := model.CommentTarget(chi.URLParam(r, "container"))
	return t, t.Valid()
}

type AddCommentRequest struct {
	ParentID string `json:"parent_id"`
	Text     string `json:"text"`
}

type EditCommentRequest struct {
	Text string `json:"text"`
}

func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	target, ok := commentTarget(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	tree, err := h.comments.List(r.Context(), target, chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, "comment.List", err, "failed to load comments")
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	target, ok := commentTarget(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var req AddCommentRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	c, err := h.comments.Add(r.Context(), service.AddCommentRequest{
		Target:      target,
		ContainerID: chi.URLParam(r, "id"),
		ParentID:    req.ParentID,
		UserID:      userID,
		Text:        req.Text,
	})
	if err != nil {
		httpError(w, "comment.Add", err, "failed to add comment")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CommentHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	target, ok := commentTarget(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var req EditCommentRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	c, err := h.comments.Edit(r.Context(), target, chi.URLParam(r, "commentId"), userID, req.Text)
	if err != nil {
		httpError(w, "comment.Edit", err, "failed to edit comment")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	target, ok := commentTarget(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err := h.comments.Delete(r.Context(), target, chi.URLParam(r, "commentId"), userID); err != nil {
		httpError(w, "comment.Delete", err, "failed to delete comment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CommentHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	target, ok := commentTarget(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	liked, err := h.comments.ToggleLike(r.Context(), target, chi.URLParam(r, "commentId"), userID)
	if err != nil {
		httpError(w, "comment.Like", err, "failed to like comment")
		return
	}
	writeJSON(w, http.StatusOK, likeResponse{Liked: liked})
}
