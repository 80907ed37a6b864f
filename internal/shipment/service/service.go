// Package service implements the shipment engine: the orchestrator for every
// custody mutation. It owns authorization at the boundary, delegates state
// transitions to the aggregate, keeps the tracker index in step, and emits
// domain events and audit records around each decision.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"custodia/internal/audit"
	"custodia/internal/events"
	shipmentmetrics "custodia/internal/shipment/metrics"
	"custodia/internal/shipment/models"
	"custodia/internal/shipment/monitor"
	trackermodels "custodia/internal/tracker/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/requestcontext"
)

// Store is the persistence port for shipment aggregates. Execute must hold
// the per-shipment write lock across validate and apply; a validate error
// aborts with no write and comes back unwrapped.
type Store interface {
	Create(ctx context.Context, s *models.Shipment) error
	Delete(ctx context.Context, shipmentID id.ShipmentID) error
	FindByID(ctx context.Context, shipmentID id.ShipmentID) (*models.Shipment, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	Execute(ctx context.Context, shipmentID id.ShipmentID, validate func(*models.Shipment) error, apply func(*models.Shipment)) (*models.Shipment, error)
}

// AuthorizationRegistry answers role and admin questions for participants.
type AuthorizationRegistry interface {
	IsAuthorizedForRole(ctx context.Context, participantID id.ParticipantID, roles id.RoleSet) bool
	IsAdmin(participantID id.ParticipantID) bool
}

// TrackerIndex is the coarse-status index kept in step with shipment state.
type TrackerIndex interface {
	Record(ctx context.Context, e trackermodels.Entry) error
	Remove(ctx context.Context, shipmentID id.ShipmentID) error
}

// sealBreakReporters may report a broken seal without holding custody.
// Inspections by auditors and customs are exactly the situations where a
// break is discovered by someone other than the custodian.
var sealBreakReporters = id.NewRoleSet(id.RoleAuditor, id.RoleCustomsAuthority)

// Engine coordinates shipment mutations.
type Engine struct {
	store    Store
	registry AuthorizationRegistry
	tracker  TrackerIndex
	events   events.Publisher
	auditor  *audit.Publisher
	logger   *slog.Logger
	metrics  *shipmentmetrics.Metrics
	tracer   trace.Tracer
}

// Option configures optional engine dependencies.
type Option func(*Engine)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *shipmentmetrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracer attaches an OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithEvents attaches a domain event publisher.
func WithEvents(p events.Publisher) Option {
	return func(e *Engine) { e.events = p }
}

func New(store Store, registry AuthorizationRegistry, tracker TrackerIndex, auditor *audit.Publisher, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		store:    store,
		registry: registry,
		tracker:  tracker,
		events:   events.Nop{},
		auditor:  auditor,
		logger:   logger,
		tracer:   noop.NewTracerProvider().Tracer("shipment"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create validates the creation request, persists the shipment, and indexes
// it in the tracker. The two writes are kept atomic from the caller's view:
// if indexing fails the shipment is deleted again and the whole operation
// reports failure. Only manufacturers and distributors may create shipments,
// and the caller must be the shipper.
func (e *Engine) Create(ctx context.Context, caller id.ParticipantID, in models.NewShipmentInput) (*models.Shipment, error) {
	ctx, span := e.tracer.Start(ctx, "shipment.Create")
	defer span.End()

	if caller != in.Shipper {
		return nil, e.deny(ctx, id.ShipmentID{}, caller, "create_shipment", dErrors.New(dErrors.CodeUnauthorized, "only the shipper may create the shipment"))
	}
	if !e.registry.IsAuthorizedForRole(ctx, caller, id.ShipmentCreators) {
		return nil, e.deny(ctx, id.ShipmentID{}, caller, "create_shipment", dErrors.New(dErrors.CodeUnauthorized, "participant may not create shipments"))
	}
	sh, err := models.NewShipment(id.NewShipmentID(), in, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := e.store.Create(ctx, sh); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.WithField(dErrors.CodeConflict, "tracking number is already in use", "tracking_number")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create shipment")
	}
	if err := e.tracker.Record(ctx, e.trackerEntry(ctx, sh, caller)); err != nil {
		if delErr := e.store.Delete(ctx, sh.ID); delErr != nil {
			e.logger.ErrorContext(ctx, "failed to roll back shipment after index failure",
				"shipment", sh.ID.String(), "error", delErr)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to index shipment")
	}

	if e.metrics != nil {
		e.metrics.ShipmentsCreated.Inc()
	}
	e.logger.InfoContext(ctx, "shipment created",
		"shipment", sh.ID.String(),
		"tracking_number", sh.TrackingNumber,
		"shipper", caller.String(),
	)
	e.events.Publish(ctx, events.Event{
		Type:       events.TypeShipmentCreated,
		ShipmentID: sh.ID,
		Actor:      caller,
		Timestamp:  sh.CreatedAt,
		Detail: map[string]string{
			"tracking_number": sh.TrackingNumber,
			"product_ref":     sh.ProductRef,
		},
	})
	return sh, nil
}

// Get returns one shipment by ID.
func (e *Engine) Get(ctx context.Context, shipmentID id.ShipmentID) (*models.Shipment, error) {
	sh, err := e.store.FindByID(ctx, shipmentID)
	if err != nil {
		return nil, e.translateLookup(err)
	}
	return sh, nil
}

// GetByTrackingNumber returns one shipment by its external tracking number.
func (e *Engine) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error) {
	sh, err := e.store.FindByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, e.translateLookup(err)
	}
	return sh, nil
}

// TransferInput carries a custody hand-off request.
type TransferInput struct {
	NewCustodian id.ParticipantID
	Signature    string
	Location     models.Location
	Witness      *id.ParticipantID
	Notes        string
}

// TransferCustody moves custody from the caller to the new custodian. The
// caller must hold custody; the target must be active in a custody-eligible
// role. The accepted hand-off appends to the custody chain and refreshes the
// tracker index.
func (e *Engine) TransferCustody(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, in TransferInput) (*models.Shipment, error) {
	ctx, span := e.tracer.Start(ctx, "shipment.TransferCustody")
	defer span.End()
	start := requestcontext.Now(ctx)

	if in.Signature == "" {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "custody signature is required", "signature")
	}
	if err := in.Location.Validate(); err != nil {
		return nil, err
	}
	if !e.registry.IsAuthorizedForRole(ctx, in.NewCustodian, id.CustodyEligible) {
		return nil, e.deny(ctx, shipmentID, caller, "transfer_custody", dErrors.New(dErrors.CodeUnauthorized, "new custodian is not eligible to hold custody"))
	}

	sig := models.CustodySignature{
		Signer:    caller,
		Signature: in.Signature,
		Action:    "custody_transfer",
		Location:  in.Location,
		Witness:   in.Witness,
		Notes:     in.Notes,
		Timestamp: start,
	}
	sh, err := e.execute(ctx, shipmentID, caller, "transfer_custody",
		func(s *models.Shipment) error { return s.CanTransferCustody(caller) },
		func(s *models.Shipment) { s.ApplyCustodyTransfer(sig, in.NewCustodian) },
	)
	if err != nil {
		return nil, err
	}
	e.recordTracker(ctx, sh, caller)

	if e.metrics != nil {
		e.metrics.CustodyTransfers.Inc()
		e.metrics.ObserveTransfer(start)
	}
	e.logger.InfoContext(ctx, "custody transferred",
		"shipment", sh.ID.String(),
		"from", caller.String(),
		"to", in.NewCustodian.String(),
	)
	e.events.Publish(ctx, events.Event{
		Type:       events.TypeCustodyTransferred,
		ShipmentID: sh.ID,
		Actor:      caller,
		Timestamp:  start,
		Detail: map[string]string{
			"new_custodian": in.NewCustodian.String(),
			"chain_length":  strconv.Itoa(len(sh.CustodyChain)),
		},
	})
	return sh, nil
}

// CompleteStage completes the current stage of the plan. Only the stage's
// responsible party may complete it; stages complete strictly in order.
func (e *Engine) CompleteStage(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, signatures []string) (*models.Shipment, error) {
	ctx, span := e.tracer.Start(ctx, "shipment.CompleteStage")
	defer span.End()
	now := requestcontext.Now(ctx)

	var (
		delivered bool
		stageName string
	)
	sh, err := e.execute(ctx, shipmentID, caller, "complete_stage",
		func(s *models.Shipment) error { return s.CanCompleteStage(caller) },
		func(s *models.Shipment) {
			stageName = s.Stages[s.CurrentStageIndex].Name
			delivered = s.ApplyStageCompletion(signatures, now)
		},
	)
	if err != nil {
		return nil, err
	}
	e.recordTracker(ctx, sh, caller)

	if e.metrics != nil {
		e.metrics.StagesCompleted.Inc()
	}
	e.logger.InfoContext(ctx, "stage completed",
		"shipment", sh.ID.String(),
		"stage", stageName,
		"delivered", delivered,
	)
	e.events.Publish(ctx, events.Event{
		Type:       events.TypeStageCompleted,
		ShipmentID: sh.ID,
		Actor:      caller,
		Timestamp:  now,
		Detail: map[string]string{
			"stage":     stageName,
			"delivered": strconv.FormatBool(delivered),
		},
	})
	return sh, nil
}

// SealInput describes a tamper seal to apply.
type SealInput struct {
	SealID    string
	Type      string
	Signature string
}

// AddSeal applies a tamper seal. Only the current custodian may seal.
func (e *Engine) AddSeal(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, in SealInput) (*models.Shipment, error) {
	now := requestcontext.Now(ctx)
	seal := models.TamperSeal{
		SealID:    in.SealID,
		Type:      in.Type,
		Signature: in.Signature,
		AppliedBy: caller,
		AppliedAt: now,
	}
	sh, err := e.execute(ctx, shipmentID, caller, "add_tamper_seal",
		func(s *models.Shipment) error { return s.CanAddSeal(caller, in.SealID) },
		func(s *models.Shipment) { s.ApplySeal(seal) },
	)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.SealsApplied.Inc()
	}
	e.logger.InfoContext(ctx, "tamper seal applied", "shipment", sh.ID.String(), "seal", in.SealID)
	return sh, nil
}

// BreakSeal reports a tamper seal broken. Handlers of the shipment may
// report it, as may auditors and customs authorities acting on inspection.
// The break and its mandatory severity-4 tamper incident land in one atomic
// mutation; a broken seal without an incident can never be observed.
func (e *Engine) BreakSeal(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, sealID, method string) (*models.Shipment, error) {
	ctx, span := e.tracer.Start(ctx, "shipment.BreakSeal")
	defer span.End()
	now := requestcontext.Now(ctx)

	alert := models.SecurityAlert{
		Type:        models.AlertTamper,
		Severity:    4,
		Description: "tamper seal " + sealID + " reported broken",
		Timestamp:   now,
	}
	sh, err := e.execute(ctx, shipmentID, caller, "break_seal",
		func(s *models.Shipment) error {
			if !s.IsHandler(caller) && !e.registry.IsAuthorizedForRole(ctx, caller, sealBreakReporters) {
				return dErrors.New(dErrors.CodeUnauthorized, "caller may not report seal breaks on this shipment")
			}
			seal := s.FindSeal(sealID)
			if seal == nil {
				return dErrors.WithField(dErrors.CodeNotFound, "seal not found", "seal_id")
			}
			return seal.CanBreak()
		},
		func(s *models.Shipment) {
			alert.Location = s.CurrentLocation
			s.ApplySealBreak(s.FindSeal(sealID), method, now)
			s.ApplyIncident(alert)
		},
	)
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.SealsBroken.Inc()
		e.metrics.IncidentsReported.Inc()
	}
	e.logger.WarnContext(ctx, "tamper seal broken",
		"shipment", sh.ID.String(),
		"seal", sealID,
		"risk_score", sh.RiskScore,
	)
	e.events.Publish(ctx, events.Event{
		Type:       events.TypeSealBroken,
		ShipmentID: sh.ID,
		Actor:      caller,
		Timestamp:  now,
		Detail:     map[string]string{"seal_id": sealID, "method": method},
	})
	e.events.Publish(ctx, events.Event{
		Type:       events.TypeSecurityIncident,
		ShipmentID: sh.ID,
		Actor:      caller,
		Timestamp:  now,
		Detail: map[string]string{
			"alert_type": string(models.AlertTamper),
			"severity":   "4",
			"risk_score": strconv.Itoa(sh.RiskScore),
		},
	})
	return sh, nil
}

// AddSensorReading records one environmental sample. Readings append
// unconditionally; when the value falls outside the declared spec a
// condition violation is derived and stored alongside it.
func (e *Engine) AddSensorReading(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, reading models.SensorReading) (*models.Shipment, error) {
	if reading.SensorID == "" {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "sensor id is required", "sensor_id")
	}
	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = requestcontext.Now(ctx)
	}

	var violation *models.ConditionViolation
	sh, err := e.execute(ctx, shipmentID, caller, "add_sensor_reading",
		func(s *models.Shipment) error {
			if !s.IsHandler(caller) {
				return dErrors.New(dErrors.CodeUnauthorized, "only handlers may record sensor readings")
			}
			return nil
		},
		func(s *models.Shipment) {
			violation = monitor.Evaluate(s.EnvSpec, s.SensorTrail, reading)
			s.ApplySensorReading(reading, violation)
		},
	)
	if err != nil {
		return nil, err
	}
	if violation != nil {
		if e.metrics != nil {
			e.metrics.ViolationsDetected.Inc()
		}
		e.logger.WarnContext(ctx, "condition violation detected",
			"shipment", sh.ID.String(),
			"quantity", string(violation.Quantity),
			"observed", violation.Observed,
			"severity", violation.Severity,
		)
	}
	return sh, nil
}

// IncidentInput describes a reported security incident.
type IncidentInput struct {
	Type        models.AlertType
	Severity    int
	Description string
	Location    models.Location
}

// ReportIncident appends a security alert and raises the risk score by
// severity times ten, saturating at 100. Handlers of the shipment and
// auditors or customs may report.
func (e *Engine) ReportIncident(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, in IncidentInput) (*models.Shipment, error) {
	ctx, span := e.tracer.Start(ctx, "shipment.ReportIncident")
	defer span.End()
	now := requestcontext.Now(ctx)

	if in.Severity < 1 || in.Severity > 5 {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "severity must be between 1 and 5", "severity")
	}
	switch in.Type {
	case models.AlertTamper, models.AlertTheft, models.AlertRouteDeviate, models.AlertCustodyGap, models.AlertOther:
	default:
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "unknown alert type", "type")
	}

	alert := models.SecurityAlert{
		Type:        in.Type,
		Severity:    in.Severity,
		Description: in.Description,
		Location:    in.Location,
		Timestamp:   now,
	}
	sh, err := e.execute(ctx, shipmentID, caller, "report_security_incident",
		func(s *models.Shipment) error {
			if !s.IsHandler(caller) && !e.registry.IsAuthorizedForRole(ctx, caller, sealBreakReporters) {
				return dErrors.New(dErrors.CodeUnauthorized, "caller may not report incidents on this shipment")
			}
			return nil
		},
		func(s *models.Shipment) {
			if alert.Location.IsZero() {
				alert.Location = s.CurrentLocation
			}
			s.ApplyIncident(alert)
		},
	)
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.IncidentsReported.Inc()
	}
	e.logger.WarnContext(ctx, "security incident reported",
		"shipment", sh.ID.String(),
		"type", string(in.Type),
		"severity", in.Severity,
		"risk_score", sh.RiskScore,
	)
	e.events.Publish(ctx, events.Event{
		Type:       events.TypeSecurityIncident,
		ShipmentID: sh.ID,
		Actor:      caller,
		Timestamp:  now,
		Detail: map[string]string{
			"alert_type": string(in.Type),
			"severity":   strconv.Itoa(in.Severity),
			"risk_score": strconv.Itoa(sh.RiskScore),
		},
	})
	return sh, nil
}

// AddGPSPoint appends a GPS sample and moves the shipment's current
// coordinates. Only handlers may report positions.
func (e *Engine) AddGPSPoint(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, p models.GPSPoint) (*models.Shipment, error) {
	if p.Latitude == "" || p.Longitude == "" {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "latitude and longitude are required", "latitude")
	}
	if p.RecordedAt.IsZero() {
		p.RecordedAt = requestcontext.Now(ctx)
	}
	return e.execute(ctx, shipmentID, caller, "add_gps_point",
		func(s *models.Shipment) error {
			if !s.IsHandler(caller) {
				return dErrors.New(dErrors.CodeUnauthorized, "only handlers may record GPS points")
			}
			return nil
		},
		func(s *models.Shipment) { s.ApplyGPSPoint(p) },
	)
}

// CheckpointInput describes an ad-hoc verification record.
type CheckpointInput struct {
	Name      string
	Signature string
	Location  models.Location
	Notes     string
}

// RecordCheckpoint attaches a named verification to the shipment. Handlers,
// auditors, and customs may verify.
func (e *Engine) RecordCheckpoint(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, in CheckpointInput) (*models.Shipment, error) {
	if in.Name == "" {
		return nil, dErrors.WithField(dErrors.CodeInvalidInput, "checkpoint name is required", "name")
	}
	cv := models.CheckpointVerification{
		VerifiedBy: caller,
		Location:   in.Location,
		Signature:  in.Signature,
		Notes:      in.Notes,
		Timestamp:  requestcontext.Now(ctx),
	}
	return e.execute(ctx, shipmentID, caller, "record_checkpoint",
		func(s *models.Shipment) error {
			if !s.IsHandler(caller) && !e.registry.IsAuthorizedForRole(ctx, caller, sealBreakReporters) {
				return dErrors.New(dErrors.CodeUnauthorized, "caller may not verify checkpoints on this shipment")
			}
			return nil
		},
		func(s *models.Shipment) { s.ApplyCheckpoint(in.Name, cv) },
	)
}

// UpdateStatus performs an administrative status override (lost, delayed,
// recalled). Admin only; the tracker index follows the new status.
func (e *Engine) UpdateStatus(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, next models.Status) (*models.Shipment, error) {
	if !e.registry.IsAdmin(caller) {
		return nil, e.deny(ctx, shipmentID, caller, "update_status", dErrors.New(dErrors.CodeUnauthorized, "only the registry admin may override shipment status"))
	}
	sh, err := e.execute(ctx, shipmentID, caller, "update_status",
		func(s *models.Shipment) error { return s.CanUpdateStatus(next) },
		func(s *models.Shipment) { s.ApplyStatusUpdate(next) },
	)
	if err != nil {
		return nil, err
	}
	e.recordTracker(ctx, sh, caller)
	e.logger.InfoContext(ctx, "shipment status overridden",
		"shipment", sh.ID.String(), "status", string(next))
	return sh, nil
}

// AuditTrail returns the recorded audit events for one shipment.
func (e *Engine) AuditTrail(ctx context.Context, shipmentID id.ShipmentID) ([]audit.Event, error) {
	return e.auditor.List(ctx, shipmentID)
}

// execute runs one guarded mutation through the store, translating store
// sentinels and funneling every rejection through audit and metrics.
func (e *Engine) execute(ctx context.Context, shipmentID id.ShipmentID, caller id.ParticipantID, action string, validate func(*models.Shipment) error, apply func(*models.Shipment)) (*models.Shipment, error) {
	sh, err := e.store.Execute(ctx, shipmentID, validate, apply)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "shipment not found")
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "shipment was modified concurrently")
		}
		if code := dErrors.CodeOf(err); code != dErrors.CodeInternal {
			return nil, e.deny(ctx, shipmentID, caller, action, err)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update shipment")
	}
	return sh, nil
}

// deny records a rejected mutation in the audit log and metrics and returns
// the error unchanged. Rejections leave the shipment untouched, so the audit
// log is their only durable trace.
func (e *Engine) deny(ctx context.Context, shipmentID id.ShipmentID, caller id.ParticipantID, action string, err error) error {
	code := dErrors.CodeOf(err)
	if e.metrics != nil {
		e.metrics.IncrementRejected(action, string(code))
	}
	if e.auditor != nil {
		if auditErr := e.auditor.Emit(ctx, audit.Event{
			ShipmentID: shipmentID,
			Actor:      caller,
			Action:     action,
			Decision:   audit.DecisionDenied,
			Reason:     err.Error(),
		}); auditErr != nil {
			e.logger.ErrorContext(ctx, "failed to record audit event", "action", action, "error", auditErr)
		}
	}
	e.logger.WarnContext(ctx, "shipment mutation rejected",
		"shipment", shipmentID.String(),
		"actor", caller.String(),
		"action", action,
		"code", string(code),
	)
	return err
}

func (e *Engine) trackerEntry(ctx context.Context, sh *models.Shipment, by id.ParticipantID) trackermodels.Entry {
	return trackermodels.Entry{
		ShipmentID:     sh.ID,
		TrackingNumber: sh.TrackingNumber,
		Status:         sh.Status,
		LastUpdate:     requestcontext.Now(ctx),
		UpdatedBy:      by,
	}
}

// recordTracker refreshes the coarse index after an accepted mutation. Index
// drift is tolerable and self-healing on the next update, so a failure here
// logs instead of failing the already committed mutation.
func (e *Engine) recordTracker(ctx context.Context, sh *models.Shipment, by id.ParticipantID) {
	if err := e.tracker.Record(ctx, e.trackerEntry(ctx, sh, by)); err != nil {
		e.logger.ErrorContext(ctx, "failed to refresh tracker index",
			"shipment", sh.ID.String(), "error", err)
	}
}

func (e *Engine) translateLookup(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "shipment not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load shipment")
}
