package store

import (
	"context"
	"sync"

	"custodia/internal/shipment/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemory keeps shipments in a map with one mutex per shipment, so the
// Execute critical section serializes writers per aggregate while leaving
// other shipments untouched. Reads return deep copies; callers can never
// alias the store's state.
type InMemory struct {
	mu       sync.RWMutex
	entries  map[id.ShipmentID]*entry
	tracking map[string]id.ShipmentID
}

type entry struct {
	mu       sync.Mutex
	shipment *models.Shipment
}

func NewInMemory() *InMemory {
	return &InMemory{
		entries:  make(map[id.ShipmentID]*entry),
		tracking: make(map[string]id.ShipmentID),
	}
}

// Create inserts a new shipment. Fails with ErrConflict when the ID or the
// tracking number is already taken.
func (s *InMemory) Create(_ context.Context, sh *models.Shipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[sh.ID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.tracking[sh.TrackingNumber]; ok {
		return sentinel.ErrConflict
	}
	s.entries[sh.ID] = &entry{shipment: cloneShipment(sh)}
	s.tracking[sh.TrackingNumber] = sh.ID
	return nil
}

// Delete removes a shipment outright. Only the creation rollback path uses
// it; committed shipments are never deleted.
func (s *InMemory) Delete(_ context.Context, shipmentID id.ShipmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[shipmentID]; ok {
		delete(s.tracking, e.shipment.TrackingNumber)
		delete(s.entries, shipmentID)
	}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, shipmentID id.ShipmentID) (*models.Shipment, error) {
	s.mu.RLock()
	e, ok := s.entries[shipmentID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneShipment(e.shipment), nil
}

func (s *InMemory) FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	s.mu.RLock()
	shipmentID, ok := s.tracking[trackingNumber]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, shipmentID)
}

// Execute runs validate-then-apply under the shipment's exclusive lock.
// When validate fails nothing is persisted and the error is returned as-is;
// apply runs against the live aggregate and its result is committed with a
// version bump. This is the single-writer-per-shipment point the aggregate's
// invariants rely on.
func (s *InMemory) Execute(_ context.Context, shipmentID id.ShipmentID, validate func(*models.Shipment) error, apply func(*models.Shipment)) (*models.Shipment, error) {
	s.mu.RLock()
	e, ok := s.entries[shipmentID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := validate(e.shipment); err != nil {
		return nil, err
	}
	apply(e.shipment)
	e.shipment.Version++
	return cloneShipment(e.shipment), nil
}

func cloneShipment(sh *models.Shipment) *models.Shipment {
	cp := *sh

	cp.AuthorizedHandlers = append([]id.ParticipantID(nil), sh.AuthorizedHandlers...)
	cp.CustodyChain = append([]models.CustodySignature(nil), sh.CustodyChain...)
	cp.Seals = append([]models.TamperSeal(nil), sh.Seals...)
	cp.Violations = append([]models.ConditionViolation(nil), sh.Violations...)
	cp.CustomsDeclarations = append([]string(nil), sh.CustomsDeclarations...)
	cp.InsurancePolicies = append([]string(nil), sh.InsurancePolicies...)
	cp.GPSTrail = append([]models.GPSPoint(nil), sh.GPSTrail...)
	cp.SensorTrail = append([]models.SensorReading(nil), sh.SensorTrail...)
	cp.Alerts = append([]models.SecurityAlert(nil), sh.Alerts...)

	cp.Stages = make([]models.SupplyStage, len(sh.Stages))
	for i, st := range sh.Stages {
		cp.Stages[i] = st
		cp.Stages[i].RequiredVerifications = append([]string(nil), st.RequiredVerifications...)
		cp.Stages[i].RequiredDocuments = append([]string(nil), st.RequiredDocuments...)
		cp.Stages[i].Signatures = append([]string(nil), st.Signatures...)
		if st.CompletedAt != nil {
			t := *st.CompletedAt
			cp.Stages[i].CompletedAt = &t
		}
	}
	for i, seal := range cp.Seals {
		if seal.BrokenAt != nil {
			t := *seal.BrokenAt
			cp.Seals[i].BrokenAt = &t
		}
	}
	for i, alert := range cp.Alerts {
		if alert.ResolvedAt != nil {
			t := *alert.ResolvedAt
			cp.Alerts[i].ResolvedAt = &t
		}
	}
	if sh.ActualDelivery != nil {
		t := *sh.ActualDelivery
		cp.ActualDelivery = &t
	}

	if sh.Checkpoints != nil {
		cp.Checkpoints = make(map[string]models.CheckpointVerification, len(sh.Checkpoints))
		for k, v := range sh.Checkpoints {
			cp.Checkpoints[k] = v
		}
	}
	if sh.Documents != nil {
		cp.Documents = make(map[string]string, len(sh.Documents))
		for k, v := range sh.Documents {
			cp.Documents[k] = v
		}
	}
	if sh.EnvSpec.Bounds != nil {
		cp.EnvSpec.Bounds = make(map[models.Quantity]models.Range, len(sh.EnvSpec.Bounds))
		for k, v := range sh.EnvSpec.Bounds {
			cp.EnvSpec.Bounds[k] = cloneRange(v)
		}
	}
	return &cp
}

func cloneRange(r models.Range) models.Range {
	cp := models.Range{}
	if r.Min != nil {
		v := *r.Min
		cp.Min = &v
	}
	if r.Max != nil {
		v := *r.Max
		cp.Max = &v
	}
	return cp
}
