package models

import (
	"time"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Participant is a registered supply-chain party.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Role is one of the closed role set (domain.ParseRole)
//   - RiskRating stays within [0,100]
//   - Participants are never hard-deleted, only deactivated
//
// Registration is idempotent by identity: re-registering an existing
// participant overwrites its record. This lets the registry admin rotate
// key material or certifications without a separate update operation.
type Participant struct {
	ID             id.ParticipantID `json:"id"`
	Name           string           `json:"name"`
	Role           id.Role          `json:"role"`
	PublicKey      string           `json:"public_key"`
	Certifications []string         `json:"certifications"`
	Regions        []string         `json:"regions"`
	RiskRating     int              `json:"risk_rating"`
	LastAuditAt    time.Time        `json:"last_audit_at"`
	Active         bool             `json:"active"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewParticipant validates and constructs an active participant.
func NewParticipant(participantID id.ParticipantID, name string, role id.Role, publicKey string, now time.Time) (*Participant, error) {
	if participantID.IsNil() {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "participant id is required", "id")
	}
	if name == "" {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "participant name cannot be empty", "name")
	}
	if len(name) > 128 {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "participant name must be 128 characters or less", "name")
	}
	if publicKey == "" {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "participant public key is required", "public_key")
	}
	return &Participant{
		ID:        participantID,
		Name:      name,
		Role:      role,
		PublicKey: publicKey,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanOperateAs reports whether the participant is active and holds a role in
// the given capability set. This is the guard every privileged shipment
// operation runs before mutating state.
func (p *Participant) CanOperateAs(roles id.RoleSet) bool {
	return p.Active && roles.Contains(p.Role)
}

// ApplyDeactivation flips the active flag off. There is no cascade: existing
// custody records stay valid history, but the participant can no longer be
// the target of transfers or sign new records.
func (p *Participant) ApplyDeactivation(now time.Time) {
	p.Active = false
	p.UpdatedAt = now
}

// ApplyReactivation flips the active flag back on.
func (p *Participant) ApplyReactivation(now time.Time) {
	p.Active = true
	p.UpdatedAt = now
}

// ApplyAudit records an audit pass and the resulting risk rating.
func (p *Participant) ApplyAudit(rating int, now time.Time) error {
	if rating < 0 || rating > 100 {
		return dErrors.WithField(dErrors.CodeInvalidInput, "risk rating must be within [0,100]", "risk_rating")
	}
	p.RiskRating = rating
	p.LastAuditAt = now
	p.UpdatedAt = now
	return nil
}
