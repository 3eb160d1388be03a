package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pawsafe/internal/blob"
)

// FileHandler отдаёт изображения локального хранилища (при S3 файлы раздаёт бакет).
type FileHandler struct {
	local *blob.LocalStore
}

func NewFileHandler(local *blob.LocalStore) *FileHandler {
	return &FileHandler{local: local}
}

func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.local.Serve(w, key)
}
