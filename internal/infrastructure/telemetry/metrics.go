package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/approval-workflow/internal/domain/entity"
	"github.com/garyjia/approval-workflow/internal/domain/workflow"
)

const namespace = "approval"

// Metrics records workflow outcomes as Prometheus counters
type Metrics struct {
	registry     *prometheus.Registry
	transitions  *prometheus.CounterVec
	actionErrors *prometheus.CounterVec
	deliveries   *prometheus.CounterVec
	submissions  *prometheus.CounterVec
}

// NewMetrics registers the workflow collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Committed request status transitions",
			},
			[]string{"kind", "action", "to"},
		),
		actionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_errors_total",
				Help:      "Approve or reject actions that did not commit",
			},
			[]string{"kind", "action", "reason"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_deliveries_total",
				Help:      "Notification channel deliveries by outcome",
			},
			[]string{"channel", "result"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Requests submitted",
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.transitions,
		m.actionErrors,
		m.deliveries,
		m.submissions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveTransition(kind entity.RequestKind, action workflow.Trigger, to workflow.State) {
	m.transitions.WithLabelValues(string(kind), action.String(), to.String()).Inc()
}

func (m *Metrics) ObserveActionError(kind entity.RequestKind, action workflow.Trigger, reason string) {
	m.actionErrors.WithLabelValues(string(kind), action.String(), reason).Inc()
}

func (m *Metrics) ObserveDelivery(channel string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.deliveries.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) ObserveSubmission(kind entity.RequestKind) {
	m.submissions.WithLabelValues(string(kind)).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
