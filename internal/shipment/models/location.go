package models

import (
	dErrors "custodia/pkg/domain-errors"
)

// Location is an immutable descriptor of a physical place. Latitude and
// longitude are kept as strings: the digest chain hashes them verbatim, and
// string precision avoids cross-system floating-point drift.
type Location struct {
	Latitude     string `json:"latitude"`
	Longitude    string `json:"longitude"`
	Address      string `json:"address"`
	CountryCode  string `json:"country_code"`
	FacilityType string `json:"facility_type"`
	FacilityID   string `json:"facility_id,omitempty"`
}

// Validate checks the minimal shape of a location used in an event.
func (l Location) Validate() error {
	if l.Latitude == "" || l.Longitude == "" {
		return dErrors.WithField(dErrors.CodeInvalidInput, "location requires latitude and longitude", "location")
	}
	if l.CountryCode != "" && len(l.CountryCode) != 2 {
		return dErrors.WithField(dErrors.CodeInvalidInput, "country code must be ISO 3166-1 alpha-2", "country_code")
	}
	return nil
}

// IsZero reports whether the location carries no coordinates.
func (l Location) IsZero() bool {
	return l.Latitude == "" && l.Longitude == ""
}
