package store

import (
	"context"
	"sync"

	"custodia/internal/participant/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemory keeps participants in a map guarded by a RWMutex. It is the unit
// test workhorse and the default when no database is configured.
type InMemory struct {
	mu           sync.RWMutex
	participants map[id.ParticipantID]*models.Participant
}

func NewInMemory() *InMemory {
	return &InMemory{participants: make(map[id.ParticipantID]*models.Participant)}
}

// Upsert stores the participant, overwriting any existing record with the
// same identity.
func (s *InMemory) Upsert(_ context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := clone(p)
	s.participants[p.ID] = cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, participantID id.ParticipantID) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.participants[participantID]; ok {
		return clone(p), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) List(_ context.Context) ([]*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, clone(p))
	}
	return out, nil
}

// clone guards callers against aliasing the store's internal state.
func clone(p *models.Participant) *models.Participant {
	cp := *p
	cp.Certifications = append([]string(nil), p.Certifications...)
	cp.Regions = append([]string(nil), p.Regions...)
	return &cp
}
