package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/pawsafe/internal/logger"
	"github.com/pawsafe/internal/metrics"
	"github.com/pawsafe/internal/model"
)

const (
	earthRadiusKm        = 6371.0
	DefaultMatchRadiusKm = 10.0
	matchTimeout         = 30 * time.Second
)

// LostReports — источник открытых объявлений о пропаже.
type LostReports interface {
	OpenLost(ctx context.Context) ([]model.Report, error)
}

// ProximityMatcher уведомляет владельцев пропавших животных о находке поблизости.
type ProximityMatcher struct {
	reports  LostReports
	fanout   *Fanout
	radiusKm float64
	wg       sync.WaitGroup
}

func NewProximityMatcher(reports LostReports, fanout *Fanout, radiusKm float64) *ProximityMatcher {
	if radiusKm <= 0 {
		radiusKm = DefaultMatchRadiusKm
	}
	return &ProximityMatcher{reports: reports, fanout: fanout, radiusKm: radiusKm}
}

// Haversine — расстояние по большому кругу в километрах.
func Haversine(a, b model.Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Match уведомляет каждого владельца открытого Lost в радиусе (включительно) один раз.
// Объявления автора находки пропускаются. Возвращает число уведомлённых владельцев.
func (p *ProximityMatcher) Match(ctx context.Context, found *model.Report) (int, error) {
	if found.Type != model.ReportFound {
		return 0, nil
	}
	lost, err := p.reports.OpenLost(ctx)
	if err != nil {
		return 0, fmt.Errorf("proximity: %w", err)
	}
	notified := make(map[string]struct{})
	for _, rep := range lost {
		if rep.UserID == found.UserID || !rep.IsOpen() {
			continue
		}
		if _, ok := notified[rep.UserID]; ok {
			continue
		}
		dist := Haversine(found.Location, rep.Location)
		if dist > p.radiusKm {
			continue
		}
		rounded := math.Round(dist*10) / 10
		ok, err := p.fanout.Notify(ctx, rep.UserID, Event{
			ActorID: found.UserID,
			Type:    model.NotifyFoundPet,
			Title:   "A pet was found near you",
			Body:    fmt.Sprintf("A found pet was reported %.1f km from your lost pet report.", rounded),
			Data: map[string]string{
				"foundReportId": found.ID,
				"lostReportId":  rep.ID,
				"distanceKm":    strconv.FormatFloat(rounded, 'f', 1, 64),
			},
		})
		if err != nil {
			logger.Errorf("proximity: notify %s: %v", rep.UserID, err)
			continue
		}
		if ok {
			notified[rep.UserID] = struct{}{}
			metrics.ProximityMatches.Inc()
		}
	}
	return len(notified), nil
}

// MatchAsync запускает Match в фоне; ошибки логируются и не влияют на подачу объявления.
func (p *ProximityMatcher) MatchAsync(found model.Report) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), matchTimeout)
		defer cancel()
		n, err := p.Match(ctx, &found)
		if err != nil {
			logger.Errorf("proximity match for %s: %v", found.ID, err)
			return
		}
		logger.Debugf("proximity match for %s: %d owners notified", found.ID, n)
	}()
}

// Wait дожидается фоновых проверок (остановка сервиса, тесты).
func (p *ProximityMatcher) Wait() {
	p.wg.Wait()
}
