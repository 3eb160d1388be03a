package service

import (
	"context"
	"math"
	"testing"

	"github.com/pawsafe/internal/model"
	"github.com/pawsafe/internal/repository"
	"github.com/pawsafe/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offsetNorth сдвигает точку на km к северу (вдоль меридиана гаверсинус точен).
func offsetNorth(l model.Location, km float64) model.Location {
	return model.Location{Latitude: l.Latitude + km/(earthRadiusKm*math.Pi/180), Longitude: l.Longitude}
}

func TestHaversine(t *testing.T) {
	a := model.Location{Latitude: 0, Longitude: 0}
	assert.InDelta(t, 9.9, Haversine(a, offsetNorth(a, 9.9)), 1e-9)
	assert.InDelta(t, 0, Haversine(a, a), 1e-12)

	// Москва — Санкт-Петербург ≈ 634 км.
	msk := model.Location{Latitude: 55.7558, Longitude: 37.6173}
	spb := model.Location{Latitude: 59.9343, Longitude: 30.3351}
	assert.InDelta(t, 634, Haversine(msk, spb), 2)
}

type staticLost []model.Report

func (s staticLost) OpenLost(context.Context) ([]model.Report, error) { return s, nil }

func TestProximityThreshold(t *testing.T) {
	store := memory.New()
	defer store.Close()
	notifications := repository.NewNotificationRepository(store)
	fanout := NewFanout(notifications, nil, 1)

	found := &model.Report{ID: "found", UserID: "finder", Type: model.ReportFound, Location: model.Location{Latitude: 40, Longitude: -3}}
	matcher := NewProximityMatcher(staticLost{
		{ID: "near", UserID: "near-owner", Type: model.ReportLost, Location: offsetNorth(found.Location, 9.9)},
		{ID: "far", UserID: "far-owner", Type: model.ReportLost, Location: offsetNorth(found.Location, 10.1)},
		{ID: "closed", UserID: "closed-owner", Type: model.ReportLost, Status: model.ReportResolved, Location: found.Location},
		{ID: "mine", UserID: "finder", Type: model.ReportLost, Location: found.Location},
	}, fanout, 0)

	n, err := matcher.Match(context.Background(), found)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	near, err := notifications.ListForUser(context.Background(), "near-owner", 0)
	require.NoError(t, err)
	require.Len(t, near, 1)
	assert.Contains(t, near[0].Body, "9.9 km")
	assert.Equal(t, "9.9", near[0].Data["distanceKm"])
	assert.Equal(t, "near", near[0].Data["lostReportId"])

	far, err := notifications.ListForUser(context.Background(), "far-owner", 0)
	require.NoError(t, err)
	assert.Empty(t, far)

	lost := &model.Report{Type: model.ReportLost}
	n, err = matcher.Match(context.Background(), lost)
	require.NoError(t, err)
	assert.Zero(t, n, "only found reports are matched")
}
