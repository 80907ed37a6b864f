package models

import "time"

// Quantity names a physical quantity a shipment's environment is judged on.
type Quantity string

const (
	QuantityTemperature Quantity = "temperature"
	QuantityHumidity    Quantity = "humidity"
	QuantityPressure    Quantity = "pressure"
	QuantityVibration   Quantity = "vibration"
	QuantityLight       Quantity = "light_exposure"
)

// Range is an optional [Min,Max] bound for one quantity. A nil end means
// that side is unbounded.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Contains reports whether v lies within the bound.
func (r Range) Contains(v float64) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// EnvironmentalSpec declares the acceptable physical conditions for a
// shipment. Quantities without an entry in Bounds are not monitored.
type EnvironmentalSpec struct {
	Bounds             map[Quantity]Range `json:"bounds,omitempty"`
	MaxExposureMinutes int                `json:"max_exposure_minutes,omitempty"`
	TimeSensitive      bool               `json:"time_sensitive,omitempty"`
}

// BoundFor returns the declared bound for a quantity, if any.
func (s EnvironmentalSpec) BoundFor(q Quantity) (Range, bool) {
	r, ok := s.Bounds[q]
	return r, ok
}

// ConditionViolation records one out-of-range detection. Violations are
// immutable once recorded and never feed the risk score in the baseline
// policy; they are surfaced for audit and compliance consumption.
type ConditionViolation struct {
	SensorID        string    `json:"sensor_id"`
	Quantity        Quantity  `json:"quantity"`
	Observed        float64   `json:"observed"`
	Threshold       Range     `json:"threshold"`
	DetectedAt      time.Time `json:"detected_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Severity        int       `json:"severity"`
}
