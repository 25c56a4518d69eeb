package services

import (
	"testing"

	"mission-reward-system/config"
	"mission-reward-system/models"

	"github.com/stretchr/testify/require"
)

func testStore(radius float64, active bool) *models.StoreLocation {
	return &models.StoreLocation{
		ID:        "loc-gangnam",
		Name:      "Gangnam Branch",
		Latitude:  37.5325,
		Longitude: 126.9035,
		Radius:    radius,
		IsActive:  active,
	}
}

func TestEvaluateNearbyClaimAccepted(t *testing.T) {
	e := NewGeofenceEvaluator(config.LoadPolicy())

	result := e.Evaluate(ReportedLocation{Latitude: 37.5326, Longitude: 126.9036, Accuracy: 5}, testStore(50, true))

	require.True(t, result.Accepted)
	require.Equal(t, models.VerdictAccurate, result.Verdict)
	require.Greater(t, result.DistanceMeters, 5.0)
	require.Less(t, result.DistanceMeters, 25.0)
	require.False(t, result.LowConfidence)
	require.Empty(t, result.Reason)
}

func TestEvaluateFarClaimRejectedWithReason(t *testing.T) {
	e := NewGeofenceEvaluator(config.LoadPolicy())

	// ~850m north of the store
	result := e.Evaluate(ReportedLocation{Latitude: 37.54014, Longitude: 126.9035, Accuracy: 10}, testStore(50, true))

	require.False(t, result.Accepted)
	require.Equal(t, models.VerdictInvalid, result.Verdict)
	require.InDelta(t, 850, result.DistanceMeters, 10)
	require.Contains(t, result.Reason, "too far (")
}

func TestEvaluateVerdictBandsIndependentOfRadius(t *testing.T) {
	e := NewGeofenceEvaluator(config.LoadPolicy())

	// ~120m away: suspicious band, but a generous radius still accepts it
	result := e.Evaluate(ReportedLocation{Latitude: 37.53358, Longitude: 126.9035, Accuracy: 10}, testStore(200, true))
	require.True(t, result.Accepted)
	require.Equal(t, models.VerdictSuspicious, result.Verdict)

	// Same fix against a tight radius: still suspicious, no longer accepted
	result = e.Evaluate(ReportedLocation{Latitude: 37.53358, Longitude: 126.9035, Accuracy: 10}, testStore(50, true))
	require.False(t, result.Accepted)
	require.Equal(t, models.VerdictSuspicious, result.Verdict)
}

func TestEvaluateAnyDistanceBeyondRadiusRejected(t *testing.T) {
	e := NewGeofenceEvaluator(config.LoadPolicy())

	// Accurate-band distance (~14m) but the store radius is tighter
	result := e.Evaluate(ReportedLocation{Latitude: 37.5326, Longitude: 126.9036, Accuracy: 1}, testStore(10, true))

	require.False(t, result.Accepted)
	require.Equal(t, models.VerdictAccurate, result.Verdict)
	require.NotEmpty(t, result.Reason)
}

func TestEvaluateInactiveStoreRejectsEverything(t *testing.T) {
	e := NewGeofenceEvaluator(config.LoadPolicy())

	// Standing on the doorstep of an inactive store
	result := e.Evaluate(ReportedLocation{Latitude: 37.5325, Longitude: 126.9035, Accuracy: 5}, testStore(50, false))

	require.False(t, result.Accepted)
	require.Equal(t, "location is inactive", result.Reason)
}

func TestEvaluateLowAccuracyFlagsLowConfidence(t *testing.T) {
	e := NewGeofenceEvaluator(config.LoadPolicy())

	result := e.Evaluate(ReportedLocation{Latitude: 37.5326, Longitude: 126.9036, Accuracy: 150}, testStore(50, true))

	// Still accepted — low confidence only demotes priority downstream
	require.True(t, result.Accepted)
	require.True(t, result.LowConfidence)
}

func TestHaversineKnownDistance(t *testing.T) {
	// Seoul City Hall → Busan City Hall, roughly 325km
	d := HaversineMeters(37.5665, 126.9780, 35.1796, 129.0756)
	require.InDelta(t, 325000, d, 5000)

	require.Zero(t, HaversineMeters(37.5665, 126.9780, 37.5665, 126.9780))
}
