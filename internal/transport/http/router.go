package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformmetrics "custodia/internal/platform/metrics"
	"custodia/internal/platform/middleware"
)

// RouterDeps carries everything the router mounts.
type RouterDeps struct {
	Shipments    *ShipmentHandler
	Participants *ParticipantHandler
	Tracker      *TrackerHandler
	Validator    middleware.TokenValidator
	AdminToken   string
	Metrics      *platformmetrics.Metrics
	Logger       *slog.Logger
}

// NewRouter wires middleware and mounts every endpoint. Authenticated routes
// carry the acting participant on the context; admin routes additionally
// require the shared admin token.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
		deps.Shipments.Register(r)
		deps.Participants.Register(r)
		deps.Tracker.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))
		r.Use(middleware.RequireAdminToken(deps.AdminToken, deps.Logger))
		deps.Shipments.RegisterAdmin(r)
		deps.Participants.RegisterAdmin(r)
		deps.Tracker.RegisterAdmin(r)
	})

	return r
}
