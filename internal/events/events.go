// Package events carries the domain event side-channel. Subscribers
// (dashboards, the compliance engine, notification services) receive events
// at-least-once and must be idempotent; the emitter never blocks a shipment
// mutation on delivery.
package events

import (
	"context"
	"time"

	id "custodia/pkg/domain"
)

// Type names a domain event.
type Type string

const (
	TypeShipmentCreated    Type = "shipment_created"
	TypeCustodyTransferred Type = "custody_transferred"
	TypeStageCompleted     Type = "stage_completed"
	TypeSecurityIncident   Type = "security_incident"
	TypeSealBroken         Type = "seal_broken"
)

// Event is emitted from domain logic after a successful mutation. Keep it
// transport-agnostic so sinks can fan out without depending on the aggregate.
type Event struct {
	Type       Type              `json:"type"`
	ShipmentID id.ShipmentID     `json:"shipment_id"`
	Actor      id.ParticipantID  `json:"actor"`
	Timestamp  time.Time         `json:"timestamp"`
	Detail     map[string]string `json:"detail,omitempty"`
}

// Publisher is the emitting port. Implementations must not block on slow
// subscribers; failures are logged, never surfaced into the mutation path.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Nop discards events; useful default when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
