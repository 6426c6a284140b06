package observability

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics counts ledger, order and request activity. All methods are
// safe on a nil receiver.
type DomainMetrics struct {
	movements    *prometheus.CounterVec
	reservations *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	requests     *prometheus.CounterVec
}

// NewDomainMetrics registers the domain counters against registerer.
func NewDomainMetrics(registerer prometheus.Registerer) *DomainMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return newDomainMetrics(registerer)
}

func newDomainMetrics(registerer prometheus.Registerer) *DomainMetrics {
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supplyhub_stock_movements_total",
		Help: "Stock movements written to the ledger by type.",
	}, []string{"type"})
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supplyhub_stock_reservations_total",
		Help: "Order reservation attempts by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supplyhub_order_transitions_total",
		Help: "Order status transitions.",
	}, []string{"from", "to"})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "supplyhub_quantity_requests_total",
		Help: "Quantity request lifecycle events.",
	}, []string{"event"})
	registerer.MustRegister(movements, reservations, transitions, requests)
	return &DomainMetrics{movements: movements, reservations: reservations, transitions: transitions, requests: requests}
}

// StockMovement counts a committed ledger movement.
func (m *DomainMetrics) StockMovement(movementType string) {
	if m == nil {
		return
	}
	m.movements.WithLabelValues(movementType).Inc()
}

// Reservation counts an order reservation outcome ("ok", "insufficient", "error").
func (m *DomainMetrics) Reservation(outcome string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
}

// OrderTransition counts a committed status change.
func (m *DomainMetrics) OrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// QuantityRequest counts a request event such as "created" or "approved_partial".
func (m *DomainMetrics) QuantityRequest(event string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(event).Inc()
}
