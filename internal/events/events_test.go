package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "custodia/pkg/domain"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()
	shipmentID := id.NewShipmentID()

	r.Publish(ctx, Event{Type: TypeShipmentCreated, ShipmentID: shipmentID, Timestamp: time.Now()})
	r.Publish(ctx, Event{Type: TypeCustodyTransferred, ShipmentID: shipmentID})
	r.Publish(ctx, Event{Type: TypeCustodyTransferred, ShipmentID: shipmentID})

	assert.Len(t, r.Events(), 3)
	assert.Len(t, r.OfType(TypeCustodyTransferred), 2)
	assert.Len(t, r.OfType(TypeSealBroken), 0)
}

func TestEventsReturnsCopy(t *testing.T) {
	r := NewRecorder()
	r.Publish(context.Background(), Event{Type: TypeShipmentCreated})

	got := r.Events()
	got[0].Type = TypeSealBroken

	assert.Equal(t, TypeShipmentCreated, r.Events()[0].Type)
}
