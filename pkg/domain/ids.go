// Package domain holds shared domain primitives: typed identifiers and the
// participant role taxonomy. Typed IDs make cross-entity mixups a compile
// error instead of a data corruption bug.
package domain

import (
	"github.com/google/uuid"

	dErrors "custodia/pkg/domain-errors"
)

// ShipmentID identifies a shipment aggregate.
type ShipmentID uuid.UUID

// ParticipantID identifies a registered supply-chain party.
type ParticipantID uuid.UUID

// ZoneID identifies a tracking zone.
type ZoneID uuid.UUID

func (id ShipmentID) String() string    { return uuid.UUID(id).String() }
func (id ParticipantID) String() string { return uuid.UUID(id).String() }
func (id ZoneID) String() string        { return uuid.UUID(id).String() }

func (id ShipmentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ParticipantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ZoneID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

// The text forms below keep IDs in canonical UUID notation everywhere they
// cross a serialization boundary: JSON bodies, event payloads and Redis
// values all carry "b8c19362-..." rather than a raw byte array.

func (id ShipmentID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *ShipmentID) UnmarshalText(b []byte) error {
	parsed, err := ParseShipmentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ParticipantID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *ParticipantID) UnmarshalText(b []byte) error {
	parsed, err := ParseParticipantID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ZoneID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *ZoneID) UnmarshalText(b []byte) error {
	parsed, err := ParseZoneID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewShipmentID allocates a fresh shipment identifier.
func NewShipmentID() ShipmentID { return ShipmentID(uuid.New()) }

// NewParticipantID allocates a fresh participant identifier.
func NewParticipantID() ParticipantID { return ParticipantID(uuid.New()) }

// NewZoneID allocates a fresh zone identifier.
func NewZoneID() ZoneID { return ZoneID(uuid.New()) }

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

// ParseShipmentID validates and returns a ShipmentID from its string form.
func ParseShipmentID(s string) (ShipmentID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ShipmentID{}, err
	}
	return ShipmentID(u), nil
}

// ParseParticipantID validates and returns a ParticipantID from its string form.
func ParseParticipantID(s string) (ParticipantID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ParticipantID{}, err
	}
	return ParticipantID(u), nil
}

// ParseZoneID validates and returns a ZoneID from its string form.
func ParseZoneID(s string) (ZoneID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ZoneID{}, err
	}
	return ZoneID(u), nil
}
