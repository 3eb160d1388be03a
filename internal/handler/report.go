package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/service"
)

type ReportHandler struct {
	reports *service.ReportService
}

func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

type SubmitReportRequest struct {
	Type        model.ReportType `json:"type"`
	PetName     string           `json:"petName"`
	Description string           `json:"description"`
	Location    model.Location   `json:"location"`
	Images      []string         `json:"images"`
}

func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req SubmitReportRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	rep := &model.Report{
		UserID:      userID,
		Type:        req.Type,
		PetName:     req.PetName,
		Description: req.Description,
		Location:    req.Location,
		Images:      req.Images,
	}
	if err := h.reports.Submit(r.Context(), rep); err != nil {
		httpError(w, "report.Submit", err, "failed to submit report")
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, "report.Get", err, "failed to load report")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *ReportHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.reports.Resolve(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		httpError(w, "report.Resolve", err, "failed to resolve report")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
