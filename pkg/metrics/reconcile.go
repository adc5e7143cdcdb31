package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReconcileMetrics counts inventory mutations and reconciliation signals.
type ReconcileMetrics struct {
	reservations *prometheus.CounterVec
	releases     prometheus.Counter
	webhooks     *prometheus.CounterVec
	transitions  *prometheus.CounterVec
}

// NewReconcileMetrics registers the reconciliation metrics on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_reservations_total",
		Help: "Inventory reservation attempts by outcome.",
	}, []string{"outcome"})
	releases := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_releases_total",
		Help: "Inventory units released back to listings.",
	})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhook_events_total",
		Help: "Gateway webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions applied.",
	}, []string{"to"})
	reg.MustRegister(reservations, releases, webhooks, transitions)
	return &ReconcileMetrics{
		reservations: reservations,
		releases:     releases,
		webhooks:     webhooks,
		transitions:  transitions,
	}
}

// IncReservation counts one reservation attempt with its outcome label.
func (m *ReconcileMetrics) IncReservation(outcome string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddReleased counts units released back to a listing.
func (m *ReconcileMetrics) AddReleased(qty int) {
	if m == nil || m.releases == nil || qty <= 0 {
		return
	}
	m.releases.Add(float64(qty))
}

// IncWebhookEvent counts one webhook delivery by type and outcome.
func (m *ReconcileMetrics) IncWebhookEvent(eventType, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncTransition counts one applied order transition by target status.
func (m *ReconcileMetrics) IncTransition(to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to)).Inc()
}
