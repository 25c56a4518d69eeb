package services

import (
	"fmt"
	"math"

	"mission-reward-system/config"
	"mission-reward-system/models"
)

const earthRadiusMeters = 6371000 // mean earth radius, spherical approximation

// ReportedLocation is the GPS fix a client sends with an attendance claim
type ReportedLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"` // meters, as reported by the device
}

// GeofenceResult is the full outcome of evaluating one GPS claim.
// Accepted=false with a Reason is a normal outcome ("too far"), not an
// error — the submission is still created so an operator can review it.
type GeofenceResult struct {
	DistanceMeters float64                `json:"distance_meters"`
	Verdict        models.GeofenceVerdict `json:"verdict"`
	Accepted       bool                   `json:"accepted"`
	LowConfidence  bool                   `json:"low_confidence"`
	Reason         string                 `json:"reason,omitempty"`
}

// GeofenceEvaluator classifies reported GPS fixes against store geofences.
// Pure: no I/O, no side effects.
type GeofenceEvaluator struct {
	Policy *config.Policy
}

func NewGeofenceEvaluator(policy *config.Policy) *GeofenceEvaluator {
	return &GeofenceEvaluator{Policy: policy}
}

// Evaluate computes the great-circle distance between the reported fix and
// the store, classifies it into a verdict band, and decides acceptance
// against the store's configured radius. The verdict bands are independent
// of the radius: a claim can be "accurate" yet rejected by a tight radius.
func (e *GeofenceEvaluator) Evaluate(reported ReportedLocation, store *models.StoreLocation) GeofenceResult {
	distance := HaversineMeters(reported.Latitude, reported.Longitude, store.Latitude, store.Longitude)

	result := GeofenceResult{
		DistanceMeters: distance,
		Verdict:        e.verdictFor(distance),
		LowConfidence:  reported.Accuracy > e.Policy.AccuracyThresholdM,
	}

	if !store.IsActive {
		result.Reason = "location is inactive"
		return result
	}

	if distance > store.Radius {
		result.Reason = fmt.Sprintf("too far (%dm)", int64(math.Round(distance)))
		return result
	}

	result.Accepted = true
	return result
}

func (e *GeofenceEvaluator) verdictFor(distance float64) models.GeofenceVerdict {
	switch {
	case distance <= e.Policy.AccurateBandMeters:
		return models.VerdictAccurate
	case distance <= e.Policy.SuspiciousBandMeters:
		return models.VerdictSuspicious
	default:
		return models.VerdictInvalid
	}
}

// HaversineMeters returns the great-circle distance between two WGS84
// points on a spherical earth. Good to a fraction of a percent, which is
// plenty against geofence radii of tens of meters.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
