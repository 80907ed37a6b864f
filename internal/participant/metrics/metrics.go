package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the participant registry.
type Metrics struct {
	ParticipantsRegistered prometheus.Counter
	AuthorizationDenied    prometheus.Counter
}

// New creates a new Metrics instance with all registry metrics registered.
func New() *Metrics {
	return &Metrics{
		ParticipantsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_participants_registered_total",
			Help: "Total number of participant registrations (including overwrites)",
		}),
		AuthorizationDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_participant_authorization_denied_total",
			Help: "Total number of role checks that denied the caller",
		}),
	}
}

// IncrementRegistered records a participant registration.
func (m *Metrics) IncrementRegistered() {
	if m != nil {
		m.ParticipantsRegistered.Inc()
	}
}

// IncrementDenied records a failed authorization check.
func (m *Metrics) IncrementDenied() {
	if m != nil {
		m.AuthorizationDenied.Inc()
	}
}
