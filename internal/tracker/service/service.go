// Package service implements the shipment tracker: the process-wide
// directory of active shipments and the registry of tracking zones. It
// indexes coarse status only; all fine-grained state lives on the shipment
// aggregate.
package service

import (
	"context"
	"errors"
	"log/slog"

	"custodia/internal/tracker/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/requestcontext"
)

// Store is the persistence port for the tracker index and zone metadata.
type Store interface {
	UpsertEntry(ctx context.Context, e models.Entry) error
	FindEntry(ctx context.Context, shipmentID id.ShipmentID) (models.Entry, error)
	DeleteEntry(ctx context.Context, shipmentID id.ShipmentID) error
	ListEntries(ctx context.Context) ([]models.Entry, error)
	SaveZone(ctx context.Context, z *models.TrackingZone) error
	ListZones(ctx context.Context) ([]*models.TrackingZone, error)
}

// AdminGate answers whether a participant is the registry admin. Zone
// registration is an administrative operation.
type AdminGate interface {
	IsAdmin(participantID id.ParticipantID) bool
}

// Tracker routes admin operations and serves coarse lookups.
type Tracker struct {
	store  Store
	admin  AdminGate
	logger *slog.Logger
}

func New(store Store, admin AdminGate, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: store, admin: admin, logger: logger}
}

// Record upserts the coarse index entry for a shipment. Called by the
// shipment service after every status-affecting mutation; it must stay cheap
// because it runs on every custody transfer.
func (t *Tracker) Record(ctx context.Context, e models.Entry) error {
	if e.LastUpdate.IsZero() {
		e.LastUpdate = requestcontext.Now(ctx)
	}
	if err := t.store.UpsertEntry(ctx, e); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update tracker index")
	}
	return nil
}

// Remove drops a shipment from the index. Used to roll back an indexing
// half-write when shipment creation fails after the index entry landed.
func (t *Tracker) Remove(ctx context.Context, shipmentID id.ShipmentID) error {
	if err := t.store.DeleteEntry(ctx, shipmentID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove tracker entry")
	}
	return nil
}

// Lookup returns the coarse status entry for one shipment.
func (t *Tracker) Lookup(ctx context.Context, shipmentID id.ShipmentID) (models.Entry, error) {
	e, err := t.store.FindEntry(ctx, shipmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Entry{}, dErrors.New(dErrors.CodeNotFound, "shipment is not tracked")
		}
		return models.Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up shipment")
	}
	return e, nil
}

// List returns the full coarse index.
func (t *Tracker) List(ctx context.Context) ([]models.Entry, error) {
	entries, err := t.store.ListEntries(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tracked shipments")
	}
	return entries, nil
}

// RegisterZone stores a tracking zone. Admin only.
func (t *Tracker) RegisterZone(ctx context.Context, caller id.ParticipantID, name string, countries, regulations []string) (*models.TrackingZone, error) {
	if !t.admin.IsAdmin(caller) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the registry admin may register tracking zones")
	}
	z, err := models.NewTrackingZone(id.NewZoneID(), name, countries, regulations, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := t.store.SaveZone(ctx, z); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save tracking zone")
	}
	t.logger.InfoContext(ctx, "tracking zone registered", "zone", z.ID.String(), "name", z.Name)
	return z, nil
}

// ListZones returns all registered zones.
func (t *Tracker) ListZones(ctx context.Context) ([]*models.TrackingZone, error) {
	zones, err := t.store.ListZones(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tracking zones")
	}
	return zones, nil
}

// ZonesCovering returns the zones whose country set includes the code.
// Compliance tooling uses it to resolve which regulations apply at a
// shipment's current location.
func (t *Tracker) ZonesCovering(ctx context.Context, countryCode string) ([]*models.TrackingZone, error) {
	zones, err := t.ListZones(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.TrackingZone
	for _, z := range zones {
		if z.Covers(countryCode) {
			out = append(out, z)
		}
	}
	return out, nil
}
