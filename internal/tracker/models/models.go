package models

import (
	"strings"
	"time"

	shipmodels "custodia/internal/shipment/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	pstrings "custodia/pkg/platform/strings"
)

// Entry is the tracker's weak reference to a shipment: identity plus coarse
// status, nothing more. The tracker never reaches into shipment internals;
// dashboards and compliance audits read this index concurrently with
// writers, so it must stay cheap to update and to scan.
type Entry struct {
	ShipmentID     id.ShipmentID     `json:"shipment_id"`
	TrackingNumber string            `json:"tracking_number"`
	Status         shipmodels.Status `json:"status"`
	LastUpdate     time.Time         `json:"last_update"`
	UpdatedBy      id.ParticipantID  `json:"updated_by"`
}

// TrackingZone groups countries under a named operating zone with the
// regulation identifiers that apply inside it.
type TrackingZone struct {
	ID          id.ZoneID `json:"id"`
	Name        string    `json:"name"`
	Countries   []string  `json:"countries"`
	Regulations []string  `json:"regulations,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewTrackingZone validates and constructs a zone.
func NewTrackingZone(zoneID id.ZoneID, name string, countries, regulations []string, now time.Time) (*TrackingZone, error) {
	if name == "" {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "zone name cannot be empty", "name")
	}
	countries = pstrings.DedupeAndTrimUpper(countries)
	if len(countries) == 0 {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "zone requires at least one country", "countries")
	}
	for _, c := range countries {
		if len(c) != 2 {
			return nil, dErrors.WithField(dErrors.CodeInvalidInput, "countries must be ISO 3166-1 alpha-2 codes", "countries")
		}
	}
	regulations = pstrings.DedupeAndTrim(regulations)
	return &TrackingZone{
		ID:          zoneID,
		Name:        name,
		Countries:   countries,
		Regulations: regulations,
		CreatedAt:   now,
	}, nil
}

// Covers reports whether the zone includes the given country code.
// Codes are stored uppercase; the query side is folded to match.
func (z *TrackingZone) Covers(countryCode string) bool {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	for _, c := range z.Countries {
		if c == countryCode {
			return true
		}
	}
	return false
}
