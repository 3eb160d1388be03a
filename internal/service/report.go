package service

import (
	"context"
	"strings"

	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/repository"
)

type ReportService struct {
	reports   *repository.ReportRepository
	proximity *ProximityMatcher
}

func NewReportService(reports *repository.ReportRepository, proximity *ProximityMatcher) *ReportService {
	return &ReportService{reports: reports, proximity: proximity}
}

func validLocation(l model.Location) bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// Submit сохраняет объявление. Для Found в фоне запускается поиск пропавших поблизости.
func (s *ReportService) Submit(ctx context.Context, rep *model.Report) error {
	if rep.UserID == "" || !rep.Type.Valid() || !validLocation(rep.Location) {
		return ErrInvalidInput
	}
	rep.ID = ""
	rep.Status = model.ReportOpen
	rep.ResolvedAt = nil
	rep.PetName = strings.TrimSpace(rep.PetName)
	rep.Description = strings.TrimSpace(rep.Description)
	if err := s.reports.Create(ctx, rep); err != nil {
		return err
	}
	if rep.Type == model.ReportFound && s.proximity != nil {
		s.proximity.MatchAsync(*rep)
	}
	return nil
}

// Resolve закрывает объявление (только автор). После этого отправка в связанные переписки отклоняется.
func (s *ReportService) Resolve(ctx context.Context, id, userID string) error {
	rep, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rep.UserID != userID {
		return ErrForbidden
	}
	if !rep.IsOpen() {
		return nil
	}
	return s.reports.Resolve(ctx, id)
}

func (s *ReportService) Get(ctx context.Context, id string) (*model.Report, error) {
	return s.reports.GetByID(ctx, id)
}
