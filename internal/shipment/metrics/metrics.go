package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the shipment engine. Counters track
// mutation volume; the histogram covers the custody-transfer critical path.
type Metrics struct {
	ShipmentsCreated   prometheus.Counter
	CustodyTransfers   prometheus.Counter
	StagesCompleted    prometheus.Counter
	SealsApplied       prometheus.Counter
	SealsBroken        prometheus.Counter
	IncidentsReported  prometheus.Counter
	ViolationsDetected prometheus.Counter
	RejectedMutations  *prometheus.CounterVec
	TransferDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all shipment metrics registered.
func New() *Metrics {
	return &Metrics{
		ShipmentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_shipments_created_total",
			Help: "Total number of shipments created",
		}),
		CustodyTransfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_custody_transfers_total",
			Help: "Total number of accepted custody transfers",
		}),
		StagesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_stages_completed_total",
			Help: "Total number of completed supply stages",
		}),
		SealsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_seals_applied_total",
			Help: "Total number of tamper seals applied",
		}),
		SealsBroken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_seals_broken_total",
			Help: "Total number of tamper seals reported broken",
		}),
		IncidentsReported: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_security_incidents_total",
			Help: "Total number of reported security incidents",
		}),
		ViolationsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "custodia_condition_violations_total",
			Help: "Total number of detected environmental condition violations",
		}),
		RejectedMutations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_rejected_mutations_total",
			Help: "Total number of rejected shipment mutations by error code",
		}, []string{"operation", "code"}),
		TransferDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "custodia_custody_transfer_duration_seconds",
			Help:    "Duration of custody transfer operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// ObserveTransfer records the duration of a custody transfer.
// Call with time.Now() captured at the start of the operation.
func (m *Metrics) ObserveTransfer(start time.Time) {
	if m != nil {
		m.TransferDuration.Observe(time.Since(start).Seconds())
	}
}

// IncrementRejected records a rejected mutation.
func (m *Metrics) IncrementRejected(operation, code string) {
	if m != nil {
		m.RejectedMutations.WithLabelValues(operation, code).Inc()
	}
}
