package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/audit"
	"custodia/internal/shipment/models"
	shipmentservice "custodia/internal/shipment/service"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

// ShipmentService is the engine surface the transport needs.
type ShipmentService interface {
	Create(ctx context.Context, caller id.ParticipantID, in models.NewShipmentInput) (*models.Shipment, error)
	Get(ctx context.Context, shipmentID id.ShipmentID) (*models.Shipment, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Shipment, error)
	TransferCustody(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, in shipmentservice.TransferInput) (*models.Shipment, error)
	CompleteStage(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, signatures []string) (*models.Shipment, error)
	AddSeal(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, in shipmentservice.SealInput) (*models.Shipment, error)
	BreakSeal(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, sealID, method string) (*models.Shipment, error)
	AddSensorReading(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, reading models.SensorReading) (*models.Shipment, error)
	ReportIncident(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, in shipmentservice.IncidentInput) (*models.Shipment, error)
	AddGPSPoint(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, p models.GPSPoint) (*models.Shipment, error)
	RecordCheckpoint(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, in shipmentservice.CheckpointInput) (*models.Shipment, error)
	UpdateStatus(ctx context.Context, caller id.ParticipantID, shipmentID id.ShipmentID, next models.Status) (*models.Shipment, error)
	AuditTrail(ctx context.Context, shipmentID id.ShipmentID) ([]audit.Event, error)
}

// ShipmentHandler serves the shipment endpoints.
type ShipmentHandler struct {
	shipments ShipmentService
	logger    *slog.Logger
}

func NewShipmentHandler(shipments ShipmentService, logger *slog.Logger) *ShipmentHandler {
	return &ShipmentHandler{shipments: shipments, logger: logger}
}

// Register mounts the shipment routes. The caller wires authentication; every
// route here assumes an actor on the context.
func (h *ShipmentHandler) Register(r chi.Router) {
	r.Post("/shipments", h.handleCreate)
	r.Get("/shipments/{shipmentID}", h.handleGet)
	r.Get("/shipments/tracking/{trackingNumber}", h.handleGetByTracking)
	r.Get("/shipments/{shipmentID}/audit", h.handleAuditTrail)
	r.Post("/shipments/{shipmentID}/custody", h.handleTransferCustody)
	r.Post("/shipments/{shipmentID}/stages/complete", h.handleCompleteStage)
	r.Post("/shipments/{shipmentID}/seals", h.handleAddSeal)
	r.Post("/shipments/{shipmentID}/seals/{sealID}/break", h.handleBreakSeal)
	r.Post("/shipments/{shipmentID}/sensors", h.handleAddSensorReading)
	r.Post("/shipments/{shipmentID}/gps", h.handleAddGPSPoint)
	r.Post("/shipments/{shipmentID}/incidents", h.handleReportIncident)
	r.Post("/shipments/{shipmentID}/checkpoints", h.handleRecordCheckpoint)
}

// RegisterAdmin mounts the administrative status override.
func (h *ShipmentHandler) RegisterAdmin(r chi.Router) {
	r.Post("/shipments/{shipmentID}/status", h.handleUpdateStatus)
}

func (h *ShipmentHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createShipmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, err)
		return
	}
	sh, err := h.shipments.Create(ctx, requestcontext.Actor(ctx), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sh)
}

func (h *ShipmentHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	shipmentID, err := shipmentIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	sh, err := h.shipments.Get(r.Context(), shipmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (h *ShipmentHandler) handleGetByTracking(w http.ResponseWriter, r *http.Request) {
	trackingNumber := chi.URLParam(r, "trackingNumber")
	sh, err := h.shipments.GetByTrackingNumber(r.Context(), trackingNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (h *ShipmentHandler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	shipmentID, err := shipmentIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	trail, err := h.shipments.AuditTrail(r.Context(), shipmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": trail})
}

func (h *ShipmentHandler) handleTransferCustody(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shipmentID, err := shipmentIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req transferCustodyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	newCustodian, err := id.ParseParticipantID(req.NewCustodian)
	if err != nil {
		writeError(w, dErrors.WithField(dErrors.CodeInvalidInput, "invalid new custodian id", "new_custodian"))
		return
	}
	in := shipmentservice.TransferInput{
		NewCustodian: newCustodian,
		Signature:    req.Signature,
		Location:     req.Location,
		Notes:        req.Notes,
	}
	if req.Witness != "" {
		witness, err := id.ParseParticipantID(req.Witness)
		if err != nil {
			writeError(w, dErrors.WithField(dErrors.CodeInvalidInput, "invalid witness id", "witness"))
			return
		}
		in.Witness = &witness
	}
	sh, err := h.shipments.TransferCustody(ctx, requestcontext.Actor(ctx), shipmentID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (h *ShipmentHandler) handleCompleteStage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shipmentID, err := shipmentIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req completeStageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sh, err := h.shipments.CompleteStage(ctx, requestcontext.Actor(ctx), shipmentID, req.Signatures)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (h *ShipmentHandler) handleAddSeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shipmentID, err := shipmentIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req addSealRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sh, err := h.shipments.AddSeal(ctx, requestcontext.Actor(ctx), shipmentID, shipmentservice.SealInput{
		SealID:    req.SealID,
		Type:      req.Type,
		Signature: req.Signature,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sh)
}

func (h *ShipmentHandler) handleBreakSeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shipmentID, err := shipmentIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req breakSealRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sh, err := h.shipments.BreakSeal(ctx, requestcontext.Actor(ctx), shipmentID, chi.URLParam(r, "sealID"), req.DetectionMethod)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (h *ShipmentHandler) handleAddSensorReading(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shipmentID, err := shipmentIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req sensorReadingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sh, err := h.shipments.AddSensorReading(ctx, requestcontext.Actor(ctx), shipmentID, models.SensorReading{
		SensorID:        req.SensorID,
		Quantity:        req.Quantity,
		Value:           req.Value,
		Unit:            req.Unit,
		QualityScore:    req.QualityScore,
		CalibrationDate: req.CalibrationDate,
		RecordedAt:      req.RecordedAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (h *ShipmentHandler) handleAddGPSPoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shipmentID, err := shipmentIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req gpsPointRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sh, err := h.shipments.AddGPSPoint(ctx, requestcontext.Actor(ctx), shipmentID, models.GPSPoint{
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		AccuracyM:  req.AccuracyM,
		Source:     req.Source,
		RecordedAt: req.RecordedAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (h *ShipmentHandler) handleReportIncident(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shipmentID, err := shipmentIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req incidentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sh, err := h.shipments.ReportIncident(ctx, requestcontext.Actor(ctx), shipmentID, shipmentservice.IncidentInput{
		Type:        models.AlertType(req.Type),
		Severity:    req.Severity,
		Description: req.Description,
		Location:    req.Location,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (h *ShipmentHandler) handleRecordCheckpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shipmentID, err := shipmentIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req checkpointRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sh, err := h.shipments.RecordCheckpoint(ctx, requestcontext.Actor(ctx), shipmentID, shipmentservice.CheckpointInput{
		Name:      req.Name,
		Signature: req.Signature,
		Location:  req.Location,
		Notes:     req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (h *ShipmentHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shipmentID, err := shipmentIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	sh, err := h.shipments.UpdateStatus(ctx, requestcontext.Actor(ctx), shipmentID, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func shipmentIDParam(r *http.Request) (id.ShipmentID, error) {
	shipmentID, err := id.ParseShipmentID(chi.URLParam(r, "shipmentID"))
	if err != nil {
		return id.ShipmentID{}, dErrors.WithField(dErrors.CodeInvalidInput, "invalid shipment id", "shipment_id")
	}
	return shipmentID, nil
}
