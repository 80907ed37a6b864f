// Package monitor evaluates sensor readings against a shipment's declared
// environmental requirements. It is pure: no state, no clock, no I/O. The
// shipment service feeds it the trail and stores whatever it produces.
package monitor

import (
	"custodia/internal/shipment/models"
)

// Evaluate judges a new reading against the environmental requirements,
// given the sensor trail as it stood before the reading. It returns a
// violation when a bound is declared for the reading's quantity and the
// value falls outside it, nil otherwise.
//
// Severity is 1 for a single out-of-range sample, +1 for every immediately
// preceding out-of-range sample of the same quantity, capped at 5.
// DurationMinutes is the span from the first sample of the current
// out-of-range run to this reading; a lone sample reports 0. A run whose
// duration reaches MaxExposureMinutes is pinned to severity 5 regardless of
// sample count.
func Evaluate(spec models.EnvironmentalSpec, trail []models.SensorReading, reading models.SensorReading) *models.ConditionViolation {
	bound, ok := spec.BoundFor(reading.Quantity)
	if !ok {
		return nil
	}
	if bound.Contains(reading.Value) {
		return nil
	}

	runStart := reading.RecordedAt
	severity := 1
	for i := len(trail) - 1; i >= 0; i-- {
		prev := trail[i]
		if prev.Quantity != reading.Quantity {
			continue
		}
		if bound.Contains(prev.Value) {
			break
		}
		runStart = prev.RecordedAt
		if severity < 5 {
			severity++
		}
	}

	duration := int(reading.RecordedAt.Sub(runStart).Minutes())
	if spec.MaxExposureMinutes > 0 && duration >= spec.MaxExposureMinutes {
		severity = 5
	}

	return &models.ConditionViolation{
		SensorID:        reading.SensorID,
		Quantity:        reading.Quantity,
		Observed:        reading.Value,
		Threshold:       bound,
		DetectedAt:      reading.RecordedAt,
		DurationMinutes: duration,
		Severity:        severity,
	}
}
