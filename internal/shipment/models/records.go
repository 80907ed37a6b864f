package models

import (
	"time"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// SupplyStage is one step of the ordered stage plan, created in full at
// shipment creation. Completion is one-way: pending → completed.
type SupplyStage struct {
	Name                  string             `json:"name"`
	ResponsibleParty      id.ParticipantID   `json:"responsible_party"`
	ExpectedLocation      Location           `json:"expected_location"`
	RequiredVerifications []string           `json:"required_verifications,omitempty"`
	ExpectedDuration      time.Duration      `json:"expected_duration,omitempty"`
	RequiredDocuments     []string           `json:"required_documents,omitempty"`
	EnvConstraints        *EnvironmentalSpec `json:"env_constraints,omitempty"`
	Completed             bool               `json:"completed"`
	CompletedAt           *time.Time         `json:"completed_at,omitempty"`
	Signatures            []string           `json:"signatures,omitempty"`
}

// CustodySignature is one entry of the append-only custody chain. The raw
// signature is stored as-is; cryptographic verification is the external
// verifier's job, this system only enforces authorization.
type CustodySignature struct {
	Signer    id.ParticipantID  `json:"signer"`
	Signature string            `json:"signature"`
	Action    string            `json:"action"`
	Location  Location          `json:"location"`
	Witness   *id.ParticipantID `json:"witness,omitempty"`
	Notes     string            `json:"notes,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// TamperSeal transitions only intact → broken, never the reverse.
type TamperSeal struct {
	SealID          string           `json:"seal_id"`
	Type            string           `json:"type"`
	Signature       string           `json:"signature"`
	AppliedBy       id.ParticipantID `json:"applied_by"`
	AppliedAt       time.Time        `json:"applied_at"`
	Broken          bool             `json:"broken"`
	BrokenAt        *time.Time       `json:"broken_at,omitempty"`
	DetectionMethod string           `json:"detection_method,omitempty"`
}

// CanBreak checks the seal can still be broken.
func (s *TamperSeal) CanBreak() error {
	if s.Broken {
		return dErrors.New(dErrors.CodeInvalidTransition, "seal is already broken")
	}
	return nil
}

// ApplyBreak marks the seal broken with the detection method and time.
// Call CanBreak first; a shipment-level incident must follow (the service
// layer enforces that coupling).
func (s *TamperSeal) ApplyBreak(method string, now time.Time) {
	s.Broken = true
	s.BrokenAt = &now
	s.DetectionMethod = method
}

// CheckpointVerification is a named ad-hoc verification record attached to
// the shipment outside the stage plan (e.g. a spot inspection).
type CheckpointVerification struct {
	VerifiedBy id.ParticipantID `json:"verified_by"`
	Location   Location         `json:"location"`
	Signature  string           `json:"signature"`
	Notes      string           `json:"notes,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// SensorReading is one sample of the append-only sensor trail. Readings are
// recorded unconditionally; validity is judged separately by the monitor.
type SensorReading struct {
	SensorID        string    `json:"sensor_id"`
	Quantity        Quantity  `json:"quantity"`
	Value           float64   `json:"value"`
	Unit            string    `json:"unit"`
	QualityScore    float64   `json:"quality_score"`
	CalibrationDate time.Time `json:"calibration_date"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// GPSPoint is one sample of the append-only GPS trail. Coordinates stay
// strings for the same hashing-stability reason as Location.
type GPSPoint struct {
	Latitude   string    `json:"latitude"`
	Longitude  string    `json:"longitude"`
	AccuracyM  float64   `json:"accuracy_m"`
	Source     string    `json:"source"`
	RecordedAt time.Time `json:"recorded_at"`
}

// AlertType classifies security alerts.
type AlertType string

const (
	AlertTamper       AlertType = "tamper_detected"
	AlertTheft        AlertType = "theft_suspected"
	AlertRouteDeviate AlertType = "route_deviation"
	AlertCustodyGap   AlertType = "custody_gap"
	AlertOther        AlertType = "other"
)

// SecurityAlert is an append-only incident record. Resolution is a separate
// mutation that sets the resolved flag; the alert itself is never removed.
type SecurityAlert struct {
	Type        AlertType  `json:"type"`
	Severity    int        `json:"severity"`
	Description string     `json:"description"`
	Location    Location   `json:"location"`
	Timestamp   time.Time  `json:"timestamp"`
	Resolved    bool       `json:"resolved"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}
