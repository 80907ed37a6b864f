// Package service implements the participant registry: the single authority
// on who may act in which role. Every privileged shipment operation asks this
// registry before mutating state.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	participantmetrics "custodia/internal/participant/metrics"
	"custodia/internal/participant/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	pstrings "custodia/pkg/platform/strings"
	"custodia/pkg/requestcontext"
)

// Store is the persistence port for the registry.
type Store interface {
	Upsert(ctx context.Context, p *models.Participant) error
	FindByID(ctx context.Context, participantID id.ParticipantID) (*models.Participant, error)
	List(ctx context.Context) ([]*models.Participant, error)
}

// Registry gates registration behind the admin identity and serves role
// lookups to the rest of the system.
type Registry struct {
	store   Store
	adminID id.ParticipantID
	logger  *slog.Logger
	metrics *participantmetrics.Metrics
}

// Option configures optional registry dependencies.
type Option func(*Registry)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *participantmetrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry constructs the registry. adminID is the only identity allowed
// to register or deactivate participants.
func NewRegistry(store Store, adminID id.ParticipantID, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{store: store, adminID: adminID, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterInput carries the fields for a registration request.
type RegisterInput struct {
	ID             id.ParticipantID
	Name           string
	Role           id.Role
	PublicKey      string
	Certifications []string
	Regions        []string
}

// Register creates or overwrites a participant record. Only the registry
// admin may call it; re-registration by identity is idempotent and replaces
// credentials and metadata wholesale.
func (r *Registry) Register(ctx context.Context, caller id.ParticipantID, in RegisterInput) (*models.Participant, error) {
	if caller != r.adminID {
		r.logger.WarnContext(ctx, "participant registration denied",
			"caller", caller.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the registry admin may register participants")
	}
	if _, err := id.ParseRole(string(in.Role)); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	p, err := models.NewParticipant(in.ID, in.Name, in.Role, in.PublicKey, now)
	if err != nil {
		return nil, err
	}
	p.Certifications = pstrings.DedupeAndTrim(in.Certifications)
	p.Regions = pstrings.DedupeAndTrim(in.Regions)

	// Preserve creation time and audit history across overwrites.
	if existing, err := r.store.FindByID(ctx, in.ID); err == nil {
		p.CreatedAt = existing.CreatedAt
		p.RiskRating = existing.RiskRating
		p.LastAuditAt = existing.LastAuditAt
	}

	if err := r.store.Upsert(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register participant")
	}
	if r.metrics != nil {
		r.metrics.IncrementRegistered()
	}
	r.logger.InfoContext(ctx, "participant registered",
		"participant", p.ID.String(),
		"role", p.Role.String(),
	)
	return p, nil
}

// SetActive toggles a participant's active flag. Admin only.
func (r *Registry) SetActive(ctx context.Context, caller, participantID id.ParticipantID, active bool) (*models.Participant, error) {
	if caller != r.adminID {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the registry admin may change participant status")
	}
	p, err := r.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if active {
		p.ApplyReactivation(now)
	} else {
		p.ApplyDeactivation(now)
	}
	if err := r.store.Upsert(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update participant status")
	}
	return p, nil
}

// RecordAudit stores an audit result for a participant. Admin only.
func (r *Registry) RecordAudit(ctx context.Context, caller, participantID id.ParticipantID, riskRating int) (*models.Participant, error) {
	if caller != r.adminID {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only the registry admin may record audits")
	}
	p, err := r.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if err := p.ApplyAudit(riskRating, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := r.store.Upsert(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit")
	}
	return p, nil
}

// Get returns a participant by ID.
func (r *Registry) Get(ctx context.Context, participantID id.ParticipantID) (*models.Participant, error) {
	p, err := r.store.FindByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant")
	}
	return p, nil
}

// List returns all registered participants, active or not.
func (r *Registry) List(ctx context.Context) ([]*models.Participant, error) {
	out, err := r.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list participants")
	}
	return out, nil
}

// IsAdmin reports whether the participant is the registry admin.
func (r *Registry) IsAdmin(participantID id.ParticipantID) bool {
	return participantID == r.adminID
}

// IsAuthorizedForRole is the pure guard used by shipment operations: true
// only when the participant exists, is active, and holds a role in the set.
func (r *Registry) IsAuthorizedForRole(ctx context.Context, participantID id.ParticipantID, roles id.RoleSet) bool {
	p, err := r.store.FindByID(ctx, participantID)
	if err != nil {
		if r.metrics != nil {
			r.metrics.IncrementDenied()
		}
		return false
	}
	ok := p.CanOperateAs(roles)
	if !ok && r.metrics != nil {
		r.metrics.IncrementDenied()
	}
	return ok
}

// LastAuditBefore reports participants whose most recent audit predates the
// cutoff. Compliance tooling uses it to schedule re-audits.
func (r *Registry) LastAuditBefore(ctx context.Context, cutoff time.Time) ([]*models.Participant, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var stale []*models.Participant
	for _, p := range all {
		if p.LastAuditAt.Before(cutoff) {
			stale = append(stale, p)
		}
	}
	return stale, nil
}
