package audit

import (
	"context"

	id "custodia/pkg/domain"
	"custodia/pkg/requestcontext"
)

// Store is the append-only persistence port for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByShipment(ctx context.Context, shipmentID id.ShipmentID) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
	inbox chan<- Event
}

// PublisherOption configures optional publisher behavior.
type PublisherOption func(*Publisher)

// WithInbox makes Emit hand events to a Worker via the channel instead of
// appending synchronously. A full inbox falls back to a synchronous append so
// no event is dropped.
func WithInbox(inbox chan<- Event) PublisherOption {
	return func(p *Publisher) { p.inbox = inbox }
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit records the event, filling timestamp and request metadata from the
// context when the caller left them empty.
func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = requestcontext.Now(ctx)
	}
	if base.RequestID == "" {
		base.RequestID = requestcontext.RequestID(ctx)
	}
	if base.ClientIP == "" {
		base.ClientIP = requestcontext.ClientIP(ctx)
	}
	if base.UserAgent == "" {
		base.UserAgent = requestcontext.UserAgent(ctx)
	}
	if p.inbox != nil {
		select {
		case p.inbox <- base:
			return nil
		default:
			// Inbox full; append synchronously rather than drop.
		}
	}
	return p.store.Append(ctx, base)
}

// List returns the audit trail for one shipment.
func (p *Publisher) List(ctx context.Context, shipmentID id.ShipmentID) ([]Event, error) {
	return p.store.ListByShipment(ctx, shipmentID)
}
