package models

import (
	"strconv"
	"time"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// Status is the coarse lifecycle state mirrored into the tracker index.
type Status string

const (
	StatusCreated   Status = "created"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusLost      Status = "lost"
	StatusDelayed   Status = "delayed"
	StatusRecalled  Status = "recalled"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusCreated, StatusInTransit, StatusDelivered, StatusLost, StatusDelayed, StatusRecalled:
		return Status(s), nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown shipment status: %q", s)
}

// Shipment is the aggregate root for one tracked consignment. It exclusively
// owns every nested record; the tracker holds only (ID, coarse status).
//
// Invariants:
//   - CurrentStageIndex is monotonically non-decreasing, bounded by len(Stages)
//   - CurrentCustodian equals the target of the most recent accepted custody
//     transfer (or the shipper if the chain is empty)
//   - RiskScore stays within [0,100] and only increases
//   - A TamperSeal transitions only intact → broken
//   - CustodyChain, Seals, Violations, Alerts, GPSTrail, SensorTrail are
//     append-only: entries are never removed or reordered once committed
//
// All mutating operations on one shipment must be serialized by the caller
// (the store's Execute method); the methods here assume exclusive access.
type Shipment struct {
	ID             id.ShipmentID `json:"id"`
	TrackingNumber string        `json:"tracking_number"`
	ProductRef     string        `json:"product_ref"`

	Origin          Location `json:"origin"`
	Destination     Location `json:"destination"`
	CurrentLocation Location `json:"current_location"`

	Shipper            id.ParticipantID   `json:"shipper"`
	Consignee          id.ParticipantID   `json:"consignee"`
	CurrentCustodian   id.ParticipantID   `json:"current_custodian"`
	AuthorizedHandlers []id.ParticipantID `json:"authorized_handlers,omitempty"`

	CreatedAt         time.Time  `json:"created_at"`
	EstimatedDelivery time.Time  `json:"estimated_delivery"`
	ActualDelivery    *time.Time `json:"actual_delivery,omitempty"`

	Stages            []SupplyStage                     `json:"stages"`
	CurrentStageIndex int                               `json:"current_stage_index"`
	Checkpoints       map[string]CheckpointVerification `json:"checkpoints,omitempty"`

	Seals        []TamperSeal       `json:"seals,omitempty"`
	CustodyChain []CustodySignature `json:"custody_chain,omitempty"`

	// IntegrityDigest covers only immutable creation-time fields and is never
	// recomputed. ChainDigest is the head of the mutation hash chain and
	// changes on every accepted mutation.
	IntegrityDigest string `json:"integrity_digest"`
	ChainDigest     string `json:"chain_digest"`

	EnvSpec    EnvironmentalSpec    `json:"env_spec"`
	Violations []ConditionViolation `json:"violations,omitempty"`

	Documents           map[string]string `json:"documents,omitempty"`
	CustomsDeclarations []string          `json:"customs_declarations,omitempty"`
	InsurancePolicies   []string          `json:"insurance_policies,omitempty"`

	GPSTrail    []GPSPoint      `json:"gps_trail,omitempty"`
	SensorTrail []SensorReading `json:"sensor_trail,omitempty"`

	RiskScore int             `json:"risk_score"`
	Alerts    []SecurityAlert `json:"alerts,omitempty"`

	Status Status `json:"status"`

	// Version supports optimistic concurrency in persistent stores. The
	// in-memory store bumps it too so behavior matches across backends.
	Version int64 `json:"version"`
}

// NewShipmentInput carries the creation-time fields of a shipment.
type NewShipmentInput struct {
	TrackingNumber     string
	ProductRef         string
	Shipper            id.ParticipantID
	Consignee          id.ParticipantID
	AuthorizedHandlers []id.ParticipantID
	Origin             Location
	Destination        Location
	EstimatedDelivery  time.Time
	Stages             []SupplyStage
	EnvSpec            EnvironmentalSpec
	Documents          map[string]string
	Insurance          []string
	Customs            []string
}

// NewShipment validates and allocates a shipment in the Created state with
// the shipper as first custodian and the creation digest sealed in.
func NewShipment(shipmentID id.ShipmentID, in NewShipmentInput, now time.Time) (*Shipment, error) {
	if in.TrackingNumber == "" {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "tracking number is required", "tracking_number")
	}
	if in.ProductRef == "" {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "product reference is required", "product_ref")
	}
	if in.Shipper.IsNil() || in.Consignee.IsNil() {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "shipper and consignee are required", "shipper")
	}
	if err := in.Origin.Validate(); err != nil {
		return nil, err
	}
	if err := in.Destination.Validate(); err != nil {
		return nil, err
	}
	if len(in.Stages) == 0 {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "stage plan cannot be empty", "stages")
	}
	for i, st := range in.Stages {
		if st.Name == "" || st.ResponsibleParty.IsNil() {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "stage %d requires a name and responsible party", i)
		}
		if st.Completed {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "stage %d cannot start completed", i)
		}
	}
	var handlers []id.ParticipantID
	for _, h := range in.AuthorizedHandlers {
		if h.IsNil() {
			return nil, dErrors.WithField(dErrors.CodeInvalidInput, "authorized handler cannot be the nil id", "authorized_handlers")
		}
		if h == in.Shipper || containsID(handlers, h) {
			continue
		}
		handlers = append(handlers, h)
	}

	creation := CreationDigest(in.TrackingNumber, in.Origin.Address, in.Destination.Address)
	return &Shipment{
		ID:                  shipmentID,
		TrackingNumber:      in.TrackingNumber,
		ProductRef:          in.ProductRef,
		Origin:              in.Origin,
		Destination:         in.Destination,
		CurrentLocation:     in.Origin,
		Shipper:             in.Shipper,
		Consignee:           in.Consignee,
		CurrentCustodian:    in.Shipper,
		AuthorizedHandlers:  handlers,
		CreatedAt:           now,
		EstimatedDelivery:   in.EstimatedDelivery,
		Stages:              in.Stages,
		IntegrityDigest:     creation,
		ChainDigest:         creation,
		EnvSpec:             in.EnvSpec,
		Documents:           in.Documents,
		CustomsDeclarations: in.Customs,
		InsurancePolicies:   in.Insurance,
		Status:              StatusCreated,
	}, nil
}

func containsID(ids []id.ParticipantID, p id.ParticipantID) bool {
	for _, existing := range ids {
		if existing == p {
			return true
		}
	}
	return false
}

// IsHandler reports whether the participant is the custodian or one of the
// authorized handlers.
func (s *Shipment) IsHandler(p id.ParticipantID) bool {
	if p == s.CurrentCustodian {
		return true
	}
	for _, h := range s.AuthorizedHandlers {
		if h == p {
			return true
		}
	}
	return false
}

// CanTransferCustody checks the caller holds custody right now.
func (s *Shipment) CanTransferCustody(caller id.ParticipantID) error {
	if caller != s.CurrentCustodian {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the current custodian")
	}
	return nil
}

// ApplyCustodyTransfer appends the signed hand-off and moves custody and
// location. Call CanTransferCustody first.
func (s *Shipment) ApplyCustodyTransfer(sig CustodySignature, newCustodian id.ParticipantID) {
	s.CustodyChain = append(s.CustodyChain, sig)
	s.CurrentCustodian = newCustodian
	s.CurrentLocation = sig.Location
	if s.Status == StatusCreated {
		s.Status = StatusInTransit
	}
	s.extend("custody_transfer", sig.Signer.String(), newCustodian.String(), sig.Signature, sig.Timestamp.UTC().Format(time.RFC3339Nano))
}

// CanCompleteStage checks a stage remains and the caller is responsible for it.
func (s *Shipment) CanCompleteStage(caller id.ParticipantID) error {
	if s.CurrentStageIndex >= len(s.Stages) {
		return dErrors.New(dErrors.CodeInvalidTransition, "all stages are already completed")
	}
	if caller != s.Stages[s.CurrentStageIndex].ResponsibleParty {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not responsible for the current stage")
	}
	return nil
}

// ApplyStageCompletion completes the current stage and advances the index.
// Completion is strictly sequential and irrevocable. Returns true when the
// final stage was just completed (the shipment is now delivered).
func (s *Shipment) ApplyStageCompletion(signatures []string, now time.Time) bool {
	stage := &s.Stages[s.CurrentStageIndex]
	stage.Completed = true
	stage.CompletedAt = &now
	stage.Signatures = signatures
	s.CurrentStageIndex++
	s.extend("stage_completed", stage.Name, strconv.Itoa(s.CurrentStageIndex))

	if s.CurrentStageIndex == len(s.Stages) {
		s.ActualDelivery = &now
		s.Status = StatusDelivered
		return true
	}
	if s.Status == StatusCreated {
		s.Status = StatusInTransit
	}
	return false
}

// CanAddSeal checks the caller holds custody; only the current custodian may
// apply a seal.
func (s *Shipment) CanAddSeal(caller id.ParticipantID, sealID string) error {
	if caller != s.CurrentCustodian {
		return dErrors.New(dErrors.CodeUnauthorized, "only the current custodian may apply a seal")
	}
	if sealID == "" {
		return dErrors.WithField(dErrors.CodeInvalidInput, "seal id is required", "seal_id")
	}
	for _, seal := range s.Seals {
		if seal.SealID == sealID {
			return dErrors.WithField(dErrors.CodeInvalidInput, "seal id already applied", "seal_id")
		}
	}
	return nil
}

// ApplySeal records a new intact seal.
func (s *Shipment) ApplySeal(seal TamperSeal) {
	s.Seals = append(s.Seals, seal)
	s.extend("seal_applied", seal.SealID, seal.AppliedBy.String())
}

// FindSeal returns a pointer into the seal log, or nil.
func (s *Shipment) FindSeal(sealID string) *TamperSeal {
	for i := range s.Seals {
		if s.Seals[i].SealID == sealID {
			return &s.Seals[i]
		}
	}
	return nil
}

// ApplySealBreak marks the seal broken. The caller must run seal.CanBreak
// first and must follow with a security incident; the service enforces that
// coupling as an atomic pair.
func (s *Shipment) ApplySealBreak(seal *TamperSeal, method string, now time.Time) {
	seal.ApplyBreak(method, now)
	s.extend("seal_broken", seal.SealID, method)
}

// ApplySensorReading appends the reading unconditionally and, when the
// monitor produced one, the violation. Readings are never gated on validity.
func (s *Shipment) ApplySensorReading(reading SensorReading, violation *ConditionViolation) {
	s.SensorTrail = append(s.SensorTrail, reading)
	if violation != nil {
		s.Violations = append(s.Violations, *violation)
	}
	s.extend("sensor_reading", reading.SensorID, strconv.FormatFloat(reading.Value, 'g', -1, 64))
}

// ApplyGPSPoint appends to the GPS trail and updates only the coordinates of
// the current location. Address, country, and facility fields intentionally
// stay stale until the next custody transfer: GPS pings are cheap and
// frequent and do not re-geocode.
func (s *Shipment) ApplyGPSPoint(p GPSPoint) {
	s.GPSTrail = append(s.GPSTrail, p)
	s.CurrentLocation.Latitude = p.Latitude
	s.CurrentLocation.Longitude = p.Longitude
	s.extend("gps_point", p.Latitude, p.Longitude)
}

// ApplyIncident appends the alert and raises the risk score by severity*10,
// saturating at 100. The score never decays automatically; remediation is an
// explicit administrative workflow outside this aggregate.
func (s *Shipment) ApplyIncident(alert SecurityAlert) {
	s.Alerts = append(s.Alerts, alert)
	s.RiskScore += alert.Severity * 10
	if s.RiskScore > 100 {
		s.RiskScore = 100
	}
	s.extend("security_incident", string(alert.Type), strconv.Itoa(alert.Severity))
}

// ApplyCheckpoint records a named ad-hoc verification, overwriting a
// previous record under the same name.
func (s *Shipment) ApplyCheckpoint(name string, cv CheckpointVerification) {
	if s.Checkpoints == nil {
		s.Checkpoints = make(map[string]CheckpointVerification)
	}
	s.Checkpoints[name] = cv
	s.extend("checkpoint", name, cv.VerifiedBy.String())
}

// CanUpdateStatus guards the out-of-band administrative transitions. A
// delivered shipment can still be recalled, but nothing else.
func (s *Shipment) CanUpdateStatus(next Status) error {
	switch next {
	case StatusLost, StatusDelayed, StatusRecalled:
	default:
		return dErrors.Newf(dErrors.CodeInvalidTransition, "status %q cannot be set administratively", next)
	}
	if s.Status == StatusDelivered && next != StatusRecalled {
		return dErrors.New(dErrors.CodeInvalidTransition, "a delivered shipment can only be recalled")
	}
	return nil
}

// ApplyStatusUpdate performs an administrative status transition.
func (s *Shipment) ApplyStatusUpdate(next Status) {
	s.Status = next
	s.extend("status_update", string(next))
}

func (s *Shipment) extend(label string, parts ...string) {
	s.ChainDigest = ExtendChain(s.ChainDigest, label, parts...)
}
