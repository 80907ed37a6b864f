package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "custodia/pkg/domain"
	"custodia/pkg/requestcontext"
)

var auditNow = time.Date(2026, 4, 3, 11, 0, 0, 0, time.UTC)

func TestEmitFillsRequestMetadata(t *testing.T) {
	store := NewInMemoryStore()
	publisher := NewPublisher(store)

	ctx := requestcontext.WithTime(context.Background(), auditNow)
	ctx = requestcontext.WithRequestID(ctx, "req-42")
	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.9", "Firefox/128 on Linux")

	shipmentID := id.NewShipmentID()
	require.NoError(t, publisher.Emit(ctx, Event{
		ShipmentID: shipmentID,
		Actor:      id.NewParticipantID(),
		Action:     "transfer_custody",
		Decision:   DecisionDenied,
		Reason:     "caller is not the current custodian",
	}))

	trail, err := publisher.List(ctx, shipmentID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, auditNow, trail[0].Timestamp)
	assert.Equal(t, "req-42", trail[0].RequestID)
	assert.Equal(t, "10.0.0.9", trail[0].ClientIP)
	assert.Equal(t, "Firefox/128 on Linux", trail[0].UserAgent)
}

func TestEmitPreservesExplicitFields(t *testing.T) {
	store := NewInMemoryStore()
	publisher := NewPublisher(store)

	explicit := auditNow.Add(-time.Hour)
	shipmentID := id.NewShipmentID()
	require.NoError(t, publisher.Emit(context.Background(), Event{
		Timestamp:  explicit,
		ShipmentID: shipmentID,
		Action:     "complete_stage",
		Decision:   DecisionDenied,
		RequestID:  "explicit-id",
	}))

	trail, err := store.ListByShipment(context.Background(), shipmentID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, explicit, trail[0].Timestamp)
	assert.Equal(t, "explicit-id", trail[0].RequestID)
}

func TestWorkerDrainsInbox(t *testing.T) {
	store := NewInMemoryStore()
	inbox := make(chan Event, 8)
	publisher := NewPublisher(store, WithInbox(inbox))
	worker := NewWorker(store, inbox)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	shipmentID := id.NewShipmentID()
	for i := 0; i < 5; i++ {
		require.NoError(t, publisher.Emit(context.Background(), Event{
			ShipmentID: shipmentID,
			Action:     "update_status",
			Decision:   DecisionDenied,
		}))
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	trail, err := store.ListByShipment(context.Background(), shipmentID)
	require.NoError(t, err)
	assert.Len(t, trail, 5)
}

func TestEmitFallsBackWhenInboxFull(t *testing.T) {
	store := NewInMemoryStore()
	inbox := make(chan Event, 1)
	publisher := NewPublisher(store, WithInbox(inbox))

	shipmentID := id.NewShipmentID()
	// First fills the inbox, second must append synchronously.
	require.NoError(t, publisher.Emit(context.Background(), Event{ShipmentID: shipmentID, Action: "a"}))
	require.NoError(t, publisher.Emit(context.Background(), Event{ShipmentID: shipmentID, Action: "b"}))

	trail, err := store.ListByShipment(context.Background(), shipmentID)
	require.NoError(t, err)
	assert.Len(t, trail, 1)
	assert.Equal(t, "b", trail[0].Action)
}
