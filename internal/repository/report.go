package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/storage"
)

type ReportRepository struct {
	store storage.Store
}

func NewReportRepository(store storage.Store) *ReportRepository {
	return &ReportRepository{store: store}
}

func (r *ReportRepository) Create(ctx context.Context, rep *model.Report) error {
	defer logger.DeferLogDuration("report.Create", time.Now())()
	if rep.ID == "" {
		rep.ID = uuid.New().String()
	}
	if rep.Status == "" {
		rep.Status = model.ReportOpen
	}
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = time.Now().UTC()
	}
	if err := r.store.Create(ctx, CollReports, rep.ID, rep); err != nil {
		return fmt.Errorf("reportRepo.Create: %w", err)
	}
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*model.Report, error) {
	defer logger.DeferLogDuration("report.GetByID", time.Now())()
	doc, err := r.store.Get(ctx, CollReports, id)
	if err != nil {
		return nil, wrap("reportRepo.GetByID", err)
	}
	var rep model.Report
	if err := doc.Decode(&rep); err != nil {
		return nil, fmt.Errorf("reportRepo.GetByID: %w", err)
	}
	return &rep, nil
}

func (r *ReportRepository) Resolve(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("report.Resolve", time.Now())()
	err := r.store.Update(ctx, CollReports, id,
		storage.Set("status", model.ReportResolved),
		storage.Set("resolvedAt", time.Now().UTC()),
	)
	return wrap("reportRepo.Resolve", err)
}

// OpenLost возвращает открытые объявления о пропаже.
func (r *ReportRepository) OpenLost(ctx context.Context) ([]model.Report, error) {
	defer logger.DeferLogDuration("report.OpenLost", time.Now())()
	docs, err := r.store.Query(ctx, CollReports, storage.Eq("type", model.ReportLost))
	if err != nil {
		return nil, fmt.Errorf("reportRepo.OpenLost: %w", err)
	}
	all, err := decodeAll[model.Report](docs)
	if err != nil {
		return nil, fmt.Errorf("reportRepo.OpenLost: %w", err)
	}
	out := all[:0]
	for _, rep := range all {
		if rep.IsOpen() {
			out = append(out, rep)
		}
	}
	return out, nil
}
