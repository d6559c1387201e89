// Package metrics exposes Prometheus instruments for payments, split sessions and
// the kitchen queue.
//
// All methods are safe to call on a nil *Metrics, so components can run without
// a registry in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "canteen"

// Debit results.
const (
	DebitOK                 = "ok"
	DebitInsufficientFunds  = "insufficient_funds"
	DebitCredentialMismatch = "credential_mismatch"
	DebitError              = "error"
)

// Metrics holds the registered collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	debits             *prometheus.CounterVec
	debitedCents       prometheus.Counter
	settlements        *prometheus.CounterVec
	orderTransitions   *prometheus.CounterVec
	queueLength        *prometheus.GaugeVec
	queueWatchers      *prometheus.GaugeVec
	sessionsCreated    *prometheus.CounterVec
	invitationsHandled *prometheus.CounterVec
	rpcs               *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses a fresh registry that
// also carries the Go and process collectors.
func New(reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		r.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		gatherer: gatherer,
		debits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debits_total",
			Help:      "Debit attempts by instrument type and result.",
		}, []string{"type", "result"}),
		debitedCents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debited_cents_total",
			Help:      "Total amount debited from instruments, in cents.",
		}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Successful settlements by kind (checkout or split_share).",
		}, []string{"kind"}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order status transitions by target status.",
		}, []string{"to"}),
		queueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Active orders in the kitchen queue at the last snapshot.",
		}, []string{"cafeteria"}),
		queueWatchers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_watchers",
			Help:      "Open WatchQueue streams per cafeteria.",
		}, []string{"cafeteria"}),
		sessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "split_sessions_created_total",
			Help:      "Split-bill sessions created by split method.",
		}, []string{"method"}),
		invitationsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "split_invitations_resolved_total",
			Help:      "Invitation responses by outcome.",
		}, []string{"outcome"}),
		rpcs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "RPCs handled by procedure and code.",
		}, []string{"procedure", "code"}),
	}

	reg.MustRegister(
		m.debits,
		m.debitedCents,
		m.settlements,
		m.orderTransitions,
		m.queueLength,
		m.queueWatchers,
		m.sessionsCreated,
		m.invitationsHandled,
		m.rpcs,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Debit records a debit attempt. cents is counted only for DebitOK.
func (m *Metrics) Debit(instrumentType, result string, cents int64) {
	if m == nil {
		return
	}
	m.debits.WithLabelValues(instrumentType, result).Inc()
	if result == DebitOK {
		m.debitedCents.Add(float64(cents))
	}
}

func (m *Metrics) Settlement(kind string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(kind).Inc()
}

func (m *Metrics) OrderTransition(to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) QueueLength(cafeteriaID string, n int) {
	if m == nil {
		return
	}
	m.queueLength.WithLabelValues(cafeteriaID).Set(float64(n))
}

func (m *Metrics) QueueWatchers(cafeteriaID string, n int) {
	if m == nil {
		return
	}
	m.queueWatchers.WithLabelValues(cafeteriaID).Set(float64(n))
}

func (m *Metrics) SessionCreated(method string) {
	if m == nil {
		return
	}
	m.sessionsCreated.WithLabelValues(method).Inc()
}

func (m *Metrics) InvitationResolved(outcome string) {
	if m == nil {
		return
	}
	m.invitationsHandled.WithLabelValues(outcome).Inc()
}

// RPC records a handled call; code is "ok" or a Connect code string.
func (m *Metrics) RPC(procedure, code string) {
	if m == nil {
		return
	}
	m.rpcs.WithLabelValues(procedure, code).Inc()
}
