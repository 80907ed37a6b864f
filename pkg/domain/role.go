package domain

import (
	dErrors "custodia/pkg/domain-errors"
)

// Role is the registered capacity in which a participant operates. Roles are
// a closed set; authorization checks are capability-set membership tests
// rather than string comparisons scattered through services.
type Role string

const (
	RoleManufacturer     Role = "manufacturer"
	RoleDistributor      Role = "distributor"
	RoleRetailer         Role = "retailer"
	RoleCustomsAuthority Role = "customs_authority"
	RoleAuditor          Role = "auditor"
)

var knownRoles = map[Role]struct{}{
	RoleManufacturer:     {},
	RoleDistributor:      {},
	RoleRetailer:         {},
	RoleCustomsAuthority: {},
	RoleAuditor:          {},
}

// ParseRole validates and returns a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := knownRoles[r]; !ok {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role: %q", s)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }

// RoleSet is a capability set used as an authorization guard.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Contains reports whether the set includes the role.
func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// Capability sets used by shipment operations.
var (
	// ShipmentCreators may open a new shipment.
	ShipmentCreators = NewRoleSet(RoleManufacturer, RoleDistributor)
	// CustodyEligible may receive custody of a shipment.
	CustodyEligible = NewRoleSet(RoleManufacturer, RoleDistributor, RoleRetailer, RoleCustomsAuthority)
)
