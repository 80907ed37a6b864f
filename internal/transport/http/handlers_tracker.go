package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	trackermodels "custodia/internal/tracker/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

// TrackerService is the tracker surface the transport needs.
type TrackerService interface {
	Lookup(ctx context.Context, shipmentID id.ShipmentID) (trackermodels.Entry, error)
	List(ctx context.Context) ([]trackermodels.Entry, error)
	RegisterZone(ctx context.Context, caller id.ParticipantID, name string, countries, regulations []string) (*trackermodels.TrackingZone, error)
	ListZones(ctx context.Context) ([]*trackermodels.TrackingZone, error)
	ZonesCovering(ctx context.Context, countryCode string) ([]*trackermodels.TrackingZone, error)
}

// TrackerHandler serves the coarse index and zone endpoints.
type TrackerHandler struct {
	tracker TrackerService
	logger  *slog.Logger
}

func NewTrackerHandler(tracker TrackerService, logger *slog.Logger) *TrackerHandler {
	return &TrackerHandler{tracker: tracker, logger: logger}
}

// Register mounts the read-only tracker routes.
func (h *TrackerHandler) Register(r chi.Router) {
	r.Get("/tracker", h.handleList)
	r.Get("/tracker/{shipmentID}", h.handleLookup)
	r.Get("/zones", h.handleListZones)
}

// RegisterAdmin mounts zone registration.
func (h *TrackerHandler) RegisterAdmin(r chi.Router) {
	r.Post("/zones", h.handleRegisterZone)
}

func (h *TrackerHandler) handleLookup(w http.ResponseWriter, r *http.Request) {
	shipmentID, err := id.ParseShipmentID(chi.URLParam(r, "shipmentID"))
	if err != nil {
		writeError(w, dErrors.WithField(dErrors.CodeInvalidInput, "invalid shipment id", "shipment_id"))
		return
	}
	entry, err := h.tracker.Lookup(r.Context(), shipmentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *TrackerHandler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.tracker.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *TrackerHandler) handleListZones(w http.ResponseWriter, r *http.Request) {
	if country := r.URL.Query().Get("country"); country != "" {
		zones, err := h.tracker.ZonesCovering(r.Context(), country)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"zones": zones})
		return
	}
	zones, err := h.tracker.ListZones(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": zones})
}

func (h *TrackerHandler) handleRegisterZone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerZoneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	z, err := h.tracker.RegisterZone(ctx, requestcontext.Actor(ctx), req.Name, req.Countries, req.Regulations)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, z)
}
