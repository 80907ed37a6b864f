package audit

import (
	"time"

	id "custodia/pkg/domain"
)

// Event captures a security-relevant decision, primarily rejected privileged
// operations. Rejections are not stored on the shipment itself, so this log
// is the only durable trace of an attempted unauthorized custody transfer or
// stage completion. Keep it transport-agnostic so stores and sinks can fan
// out.
type Event struct {
	Timestamp  time.Time        `json:"timestamp"`
	ShipmentID id.ShipmentID    `json:"shipment_id"`
	Actor      id.ParticipantID `json:"actor"`
	Action     string           `json:"action"`
	Decision   string           `json:"decision"`
	Reason     string           `json:"reason"`
	RequestID  string           `json:"request_id,omitempty"`
	ClientIP   string           `json:"client_ip,omitempty"`
	UserAgent  string           `json:"user_agent,omitempty"`
}

// Decisions recorded in audit events.
const (
	DecisionDenied  = "denied"
	DecisionApplied = "applied"
)
