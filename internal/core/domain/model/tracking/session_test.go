package tracking_test

import (
	"testing"
	"time"

	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/core/domain/model/tracking"
	"campusdelivery/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(t *testing.T, lat, lng float64) kernel.GeoPoint {
	t.Helper()
	p, err := kernel.NewGeoPoint(lat, lng)
	require.NoError(t, err)
	return p
}

func TestNewSession(t *testing.T) {
	start := point(t, 26.8467, 75.5643)
	startedAt := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	s, err := tracking.NewSession("ses-1", "p-1", "ord-1", start, startedAt)
	require.NoError(t, err)

	assert.Equal(t, tracking.SessionStarted, s.Status())
	assert.True(t, s.IsActive())
	assert.Equal(t, "p-1/ord-1", s.Key())
	assert.Equal(t, start, s.CurrentLocation())
	assert.Len(t, s.Route(), 1)
	assert.Zero(t, s.DistanceTraveledKm())

	_, err = tracking.NewSession("", "p-1", "ord-1", start, startedAt)
	require.ErrorIs(t, err, errs.ErrValueIsRequired)

	var zero kernel.GeoPoint
	_, err = tracking.NewSession("ses-2", "p-1", "ord-1", zero, startedAt)
	require.Error(t, err)
}

func TestSession_Advance(t *testing.T) {
	start := point(t, 26.8467, 75.5643)
	startedAt := time.Now()

	s, err := tracking.NewSession("ses-1", "p-1", "ord-1", start, startedAt)
	require.NoError(t, err)

	// Roughly 3 km north of the start point (0.027 degrees of latitude).
	next := point(t, 26.8737, 75.5643)
	require.NoError(t, s.Advance(next, startedAt.Add(5*time.Minute)))

	assert.Equal(t, tracking.SessionInProgress, s.Status())
	assert.Equal(t, next, s.CurrentLocation())
	assert.Len(t, s.Route(), 2)
	assert.InDelta(t, 3.0, s.DistanceTraveledKm(), 0.05)
}

func TestSession_Complete_SealsDistance(t *testing.T) {
	start := point(t, 26.8467, 75.5643)
	startedAt := time.Now()

	s, err := tracking.NewSession("ses-1", "p-1", "ord-1", start, startedAt)
	require.NoError(t, err)

	next := point(t, 26.8737, 75.5643)
	require.NoError(t, s.Advance(next, startedAt.Add(5*time.Minute)))

	completedAt := startedAt.Add(20 * time.Minute)
	require.NoError(t, s.Complete(completedAt))

	assert.Equal(t, tracking.SessionCompleted, s.Status())
	assert.False(t, s.IsActive())
	require.NotNil(t, s.CompletedAt())
	assert.Equal(t, completedAt, *s.CompletedAt())
	assert.InDelta(t, 3.0, s.DistanceTraveledKm(), 0.05)

	// Sealed sessions reject further updates and completion.
	require.ErrorIs(t, s.Advance(start, completedAt.Add(time.Minute)), errs.ErrValueIsInvalid)
	require.ErrorIs(t, s.Complete(completedAt.Add(time.Minute)), errs.ErrValueIsInvalid)
}

func TestSession_Cancel(t *testing.T) {
	s, err := tracking.NewSession("ses-1", "p-1", "ord-1", point(t, 10, 10), time.Now())
	require.NoError(t, err)

	require.NoError(t, s.Cancel(time.Now()))
	assert.Equal(t, tracking.SessionCancelled, s.Status())
	require.ErrorIs(t, s.Cancel(time.Now()), errs.ErrValueIsInvalid)
}

func TestSession_SetEstimatedDeliveryTime(t *testing.T) {
	s, err := tracking.NewSession("ses-1", "p-1", "ord-1", point(t, 10, 10), time.Now())
	require.NoError(t, err)

	assert.Nil(t, s.EstimatedDeliveryTime())
	eta := time.Now().Add(12 * time.Minute)
	s.SetEstimatedDeliveryTime(eta)
	require.NotNil(t, s.EstimatedDeliveryTime())
	assert.Equal(t, eta, *s.EstimatedDeliveryTime())
}

func TestGeofence(t *testing.T) {
	center := point(t, 26.8467, 75.5643)

	t.Run("contains positions within radius", func(t *testing.T) {
		g, err := tracking.NewGeofence("gf-1", "Main Gate", center, 200, tracking.GeofenceCampus)
		require.NoError(t, err)

		inside, err := g.Contains(point(t, 26.8477, 75.5643)) // ~111 m away
		require.NoError(t, err)
		assert.True(t, inside)

		outside, err := g.Contains(point(t, 26.8567, 75.5643)) // ~1.1 km away
		require.NoError(t, err)
		assert.False(t, outside)
	})

	t.Run("rejects invalid construction", func(t *testing.T) {
		_, err := tracking.NewGeofence("", "Main Gate", center, 200, tracking.GeofenceCampus)
		require.ErrorIs(t, err, errs.ErrValueIsRequired)

		_, err = tracking.NewGeofence("gf-1", "Main Gate", center, 0, tracking.GeofenceCampus)
		require.ErrorIs(t, err, errs.ErrValueIsInvalid)

		_, err = tracking.NewGeofence("gf-1", "Main Gate", center, 100, tracking.GeofenceType("polygon"))
		require.ErrorIs(t, err, errs.ErrValueIsInvalid)
	})
}
