package audit

import (
	"context"
	"sync"

	id "custodia/pkg/domain"
)

// InMemoryStore keeps audit events in process memory. It backs unit tests
// and single-node deployments; a SIEM-bound sink can replace it behind the
// same Store interface.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByShipment(_ context.Context, shipmentID id.ShipmentID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.ShipmentID == shipmentID {
			out = append(out, e)
		}
	}
	return out, nil
}
