package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks progress through the registration flow.
type Metrics struct {
	SessionsOpened        prometheus.Counter
	AccountsBound         prometheus.Counter
	DocumentsStaged       *prometheus.CounterVec
	DocumentsRejected     *prometheus.CounterVec
	ApplicationsSubmitted prometheus.Counter
	UploadDuration        prometheus.Histogram
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return &Metrics{
		SessionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_registration_sessions_opened_total",
			Help: "Registration sessions opened after identity validation",
		}),
		AccountsBound: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_registration_accounts_bound_total",
			Help: "Accounts created and bound to a registration session",
		}),
		DocumentsStaged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_registration_documents_staged_total",
			Help: "Documents that passed validation and were staged",
		}, []string{"step"}),
		DocumentsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_registration_documents_rejected_total",
			Help: "Documents that failed validation",
		}, []string{"step"}),
		ApplicationsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_registration_applications_submitted_total",
			Help: "Registrations submitted for review",
		}),
		UploadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_registration_upload_duration_seconds",
			Help:    "Duration of a document upload including storage and validation",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
	}
}

func (m *Metrics) IncrementSessionsOpened() { m.SessionsOpened.Inc() }

func (m *Metrics) IncrementAccountsBound() { m.AccountsBound.Inc() }

func (m *Metrics) IncrementDocumentStaged(step string) {
	m.DocumentsStaged.WithLabelValues(step).Inc()
}

func (m *Metrics) IncrementDocumentRejected(step string) {
	m.DocumentsRejected.WithLabelValues(step).Inc()
}

func (m *Metrics) IncrementApplicationsSubmitted() { m.ApplicationsSubmitted.Inc() }

// ObserveUpload records upload duration.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveUpload(start time.Time) {
	m.UploadDuration.Observe(time.Since(start).Seconds())
}
