package store

import (
	"context"
	"sync"

	"custodia/internal/tracker/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemory backs the tracker index and zone metadata for tests and
// single-node runs.
type InMemory struct {
	mu      sync.RWMutex
	entries map[id.ShipmentID]models.Entry
	zones   map[id.ZoneID]*models.TrackingZone
}

func NewInMemory() *InMemory {
	return &InMemory{
		entries: make(map[id.ShipmentID]models.Entry),
		zones:   make(map[id.ZoneID]*models.TrackingZone),
	}
}

func (s *InMemory) UpsertEntry(_ context.Context, e models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.ShipmentID] = e
	return nil
}

func (s *InMemory) FindEntry(_ context.Context, shipmentID id.ShipmentID) (models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[shipmentID]; ok {
		return e, nil
	}
	return models.Entry{}, sentinel.ErrNotFound
}

func (s *InMemory) DeleteEntry(_ context.Context, shipmentID id.ShipmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, shipmentID)
	return nil
}

func (s *InMemory) ListEntries(_ context.Context) ([]models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out, nil
}

func (s *InMemory) SaveZone(_ context.Context, z *models.TrackingZone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *z
	cp.Countries = append([]string(nil), z.Countries...)
	cp.Regulations = append([]string(nil), z.Regulations...)
	s.zones[z.ID] = &cp
	return nil
}

func (s *InMemory) ListZones(_ context.Context) ([]*models.TrackingZone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.TrackingZone, 0, len(s.zones))
	for _, z := range s.zones {
		cp := *z
		out = append(out, &cp)
	}
	return out, nil
}
