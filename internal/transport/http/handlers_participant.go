package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	participantmodels "custodia/internal/participant/models"
	participantservice "custodia/internal/participant/service"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

// ParticipantService is the registry surface the transport needs.
type ParticipantService interface {
	Register(ctx context.Context, caller id.ParticipantID, in participantservice.RegisterInput) (*participantmodels.Participant, error)
	SetActive(ctx context.Context, caller, participantID id.ParticipantID, active bool) (*participantmodels.Participant, error)
	RecordAudit(ctx context.Context, caller, participantID id.ParticipantID, riskRating int) (*participantmodels.Participant, error)
	Get(ctx context.Context, participantID id.ParticipantID) (*participantmodels.Participant, error)
	List(ctx context.Context) ([]*participantmodels.Participant, error)
}

// ParticipantHandler serves the participant registry endpoints.
type ParticipantHandler struct {
	registry ParticipantService
	logger   *slog.Logger
}

func NewParticipantHandler(registry ParticipantService, logger *slog.Logger) *ParticipantHandler {
	return &ParticipantHandler{registry: registry, logger: logger}
}

// Register mounts the read-only participant routes.
func (h *ParticipantHandler) Register(r chi.Router) {
	r.Get("/participants", h.handleList)
	r.Get("/participants/{participantID}", h.handleGet)
}

// RegisterAdmin mounts the mutating registry routes.
func (h *ParticipantHandler) RegisterAdmin(r chi.Router) {
	r.Post("/participants", h.handleRegister)
	r.Post("/participants/{participantID}/active", h.handleSetActive)
	r.Post("/participants/{participantID}/audit", h.handleRecordAudit)
}

func (h *ParticipantHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerParticipantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	participantID, err := id.ParseParticipantID(req.ID)
	if err != nil {
		writeError(w, dErrors.WithField(dErrors.CodeInvalidInput, "invalid participant id", "id"))
		return
	}
	p, err := h.registry.Register(ctx, requestcontext.Actor(ctx), participantservice.RegisterInput{
		ID:             participantID,
		Name:           req.Name,
		Role:           id.Role(req.Role),
		PublicKey:      req.PublicKey,
		Certifications: req.Certifications,
		Regions:        req.Regions,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ParticipantHandler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	participantID, err := participantIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.registry.SetActive(ctx, requestcontext.Actor(ctx), participantID, req.Active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ParticipantHandler) handleRecordAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	participantID, err := participantIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req recordAuditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.registry.RecordAudit(ctx, requestcontext.Actor(ctx), participantID, req.RiskRating)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ParticipantHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	participantID, err := participantIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.registry.Get(r.Context(), participantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ParticipantHandler) handleList(w http.ResponseWriter, r *http.Request) {
	participants, err := h.registry.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": participants})
}

func participantIDParam(r *http.Request) (id.ParticipantID, error) {
	participantID, err := id.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		return id.ParticipantID{}, dErrors.WithField(dErrors.CodeInvalidInput, "invalid participant id", "participant_id")
	}
	return participantID, nil
}
