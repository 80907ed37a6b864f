package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/shipment/models"
)

func floatPtr(v float64) *float64 { return &v }

func spec(min, max float64) models.EnvironmentalSpec {
	return models.EnvironmentalSpec{
		Bounds: map[models.Quantity]models.Range{
			models.QuantityTemperature: {Min: floatPtr(min), Max: floatPtr(max)},
		},
	}
}

func reading(value float64, at time.Time) models.SensorReading {
	return models.SensorReading{
		SensorID:   "S-1",
		Quantity:   models.QuantityTemperature,
		Value:      value,
		RecordedAt: at,
	}
}

func TestEvaluate(t *testing.T) {
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	t.Run("in-range reading produces no violation", func(t *testing.T) {
		assert.Nil(t, Evaluate(spec(2, 8), nil, reading(5, base)))
	})

	t.Run("unmonitored quantity produces no violation", func(t *testing.T) {
		r := models.SensorReading{SensorID: "S-2", Quantity: models.QuantityHumidity, Value: 99, RecordedAt: base}
		assert.Nil(t, Evaluate(spec(2, 8), nil, r))
	})

	t.Run("single out-of-range reading yields exactly one severity-1 violation", func(t *testing.T) {
		v := Evaluate(spec(0, 30), nil, reading(50, base))
		require.NotNil(t, v)
		assert.Equal(t, 1, v.Severity)
		assert.Equal(t, 0, v.DurationMinutes)
		assert.Equal(t, 50.0, v.Observed)
		assert.Equal(t, models.QuantityTemperature, v.Quantity)
	})

	t.Run("consecutive out-of-range run escalates severity", func(t *testing.T) {
		trail := []models.SensorReading{
			reading(5, base),
			reading(40, base.Add(10*time.Minute)),
			reading(45, base.Add(20*time.Minute)),
		}
		v := Evaluate(spec(0, 30), trail, reading(50, base.Add(30*time.Minute)))
		require.NotNil(t, v)
		assert.Equal(t, 3, v.Severity)
		assert.Equal(t, 20, v.DurationMinutes)
	})

	t.Run("severity caps at 5", func(t *testing.T) {
		var trail []models.SensorReading
		for i := 0; i < 10; i++ {
			trail = append(trail, reading(40, base.Add(time.Duration(i)*time.Minute)))
		}
		v := Evaluate(spec(0, 30), trail, reading(40, base.Add(10*time.Minute)))
		require.NotNil(t, v)
		assert.Equal(t, 5, v.Severity)
	})

	t.Run("run resets after an in-range sample", func(t *testing.T) {
		trail := []models.SensorReading{
			reading(40, base),
			reading(5, base.Add(10*time.Minute)),
		}
		v := Evaluate(spec(0, 30), trail, reading(40, base.Add(20*time.Minute)))
		require.NotNil(t, v)
		assert.Equal(t, 1, v.Severity)
		assert.Equal(t, 0, v.DurationMinutes)
	})

	t.Run("other quantities do not extend the run", func(t *testing.T) {
		humid := models.SensorReading{SensorID: "S-2", Quantity: models.QuantityHumidity, Value: 99, RecordedAt: base.Add(5 * time.Minute)}
		trail := []models.SensorReading{
			reading(40, base),
			humid,
		}
		v := Evaluate(spec(0, 30), trail, reading(40, base.Add(10*time.Minute)))
		require.NotNil(t, v)
		assert.Equal(t, 2, v.Severity)
		assert.Equal(t, 10, v.DurationMinutes)
	})

	t.Run("run past the exposure limit pins severity to 5", func(t *testing.T) {
		limited := spec(0, 30)
		limited.MaxExposureMinutes = 15
		trail := []models.SensorReading{
			reading(40, base),
		}
		v := Evaluate(limited, trail, reading(40, base.Add(20*time.Minute)))
		require.NotNil(t, v)
		assert.Equal(t, 20, v.DurationMinutes)
		assert.Equal(t, 5, v.Severity)
	})

	t.Run("exposure limit ignores runs that stay under it", func(t *testing.T) {
		limited := spec(0, 30)
		limited.MaxExposureMinutes = 60
		trail := []models.SensorReading{
			reading(40, base),
		}
		v := Evaluate(limited, trail, reading(40, base.Add(10*time.Minute)))
		require.NotNil(t, v)
		assert.Equal(t, 2, v.Severity)
	})

	t.Run("below minimum is also a violation", func(t *testing.T) {
		v := Evaluate(spec(2, 8), nil, reading(-20, base))
		require.NotNil(t, v)
		assert.Equal(t, 1, v.Severity)
	})
}
