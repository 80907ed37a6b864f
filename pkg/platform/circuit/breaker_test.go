package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerStartsClosed(t *testing.T) {
	b := New("kafka-events")
	assert.Equal(t, StateClosed, b.State())
	assert.False(t, b.IsOpen())
	assert.Equal(t, "kafka-events", b.Name())
	assert.True(t, b.Allow())
}

func TestBreakerOpensOnConsecutiveFailures(t *testing.T) {
	b := New("kafka-events", WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		useFallback, change := b.RecordFailure()
		assert.False(t, useFallback)
		assert.False(t, change.Opened)
	}

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	t.Run("further failures report no transition", func(t *testing.T) {
		useFallback, change := b.RecordFailure()
		assert.True(t, useFallback)
		assert.False(t, change.Opened)
	})
}

func TestBreakerClosesOnConsecutiveSuccesses(t *testing.T) {
	b := New("kafka-events", WithFailureThreshold(1), WithSuccessThreshold(2))

	_, change := b.RecordFailure()
	require.True(t, change.Opened)

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)
	assert.True(t, b.IsOpen())

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreakerCountsResetOnOppositeOutcome(t *testing.T) {
	t.Run("a success while closed clears the failure run", func(t *testing.T) {
		b := New("kafka-events", WithFailureThreshold(3))
		b.RecordFailure()
		b.RecordFailure()
		b.RecordSuccess()

		b.RecordFailure()
		b.RecordFailure()
		assert.False(t, b.IsOpen())
		b.RecordFailure()
		assert.True(t, b.IsOpen())
	})

	t.Run("a failure while open clears the success run", func(t *testing.T) {
		b := New("kafka-events", WithFailureThreshold(1), WithSuccessThreshold(3))
		b.RecordFailure()
		require.True(t, b.IsOpen())

		b.RecordSuccess()
		b.RecordSuccess()
		b.RecordFailure()

		b.RecordSuccess()
		b.RecordSuccess()
		assert.True(t, b.IsOpen())
		b.RecordSuccess()
		assert.False(t, b.IsOpen())
	})
}

func TestBreakerAllowAdmitsOneProbePerCooldown(t *testing.T) {
	b := New("kafka-events", WithFailureThreshold(1), WithCooldown(25*time.Millisecond))

	b.RecordFailure()
	require.True(t, b.IsOpen())
	assert.False(t, b.Allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, b.Allow())
	// The probe restarts the window.
	assert.False(t, b.Allow())
}

func TestBreakerReset(t *testing.T) {
	b := New("kafka-events", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}
