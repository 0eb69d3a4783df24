package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chronicle"

// Chronicle holds the runtime's Prometheus collectors.
type Chronicle struct {
	gatherer prometheus.Gatherer

	advances        *prometheus.CounterVec
	advanceDuration prometheus.Histogram
	facts           *prometheus.CounterVec
	ingested        *prometheus.CounterVec
	duplicates      prometheus.Counter
	evicted         prometheus.Counter
	toasts          prometheus.Counter
	bulletins       prometheus.Counter
	unread          prometheus.Gauge
	feedClients     prometheus.Gauge
}

// NewChronicle registers chronicle collectors on reg. A nil reg uses a fresh
// private registry.
func NewChronicle(reg *prometheus.Registry) *Chronicle {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Chronicle{
		gatherer: reg,
		advances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advances_total",
			Help:      "Advance requests by outcome",
		}, []string{"outcome"}),
		advanceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "advance_duration_seconds",
			Help:      "Time spent in one advance, simulation call included",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		facts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "facts_total",
			Help:      "Facts detected by kind",
		}, []string{"kind"}),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_ingested_total",
			Help:      "Notifications inserted into the inbox by priority",
		}, []string{"priority"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_duplicate_total",
			Help:      "Notifications ignored because their id was already seen",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_evicted_total",
			Help:      "Notifications dropped by the retention cap",
		}),
		toasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toasts_promoted_total",
			Help:      "Notifications promoted to the toast queue",
		}),
		bulletins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaking_promoted_total",
			Help:      "Notifications escalated to breaking news",
		}),
		unread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifications_unread",
			Help:      "Unread, undismissed notifications in the inbox",
		}),
		feedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected live-feed websocket clients",
		}),
	}
	reg.MustRegister(
		m.advances, m.advanceDuration, m.facts, m.ingested, m.duplicates,
		m.evicted, m.toasts, m.bulletins, m.unread, m.feedClients,
	)
	return m
}

// Handler serves the registered collectors. A nil receiver serves an empty
// registry.
func (m *Chronicle) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveAdvance records one advance attempt.
func (m *Chronicle) ObserveAdvance(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.advances.WithLabelValues(outcome).Inc()
	m.advanceDuration.Observe(elapsed.Seconds())
}

// CountFact records one detected fact of kind.
func (m *Chronicle) CountFact(kind string) {
	if m == nil {
		return
	}
	m.facts.WithLabelValues(kind).Inc()
}

// CountIngested records one inserted notification.
func (m *Chronicle) CountIngested(priority string) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(priority).Inc()
}

// CountDuplicates records n ignored duplicates.
func (m *Chronicle) CountDuplicates(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.duplicates.Add(float64(n))
}

// CountEvicted records n retention evictions.
func (m *Chronicle) CountEvicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evicted.Add(float64(n))
}

// CountToasts records n toast promotions.
func (m *Chronicle) CountToasts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.toasts.Add(float64(n))
}

// CountBreaking records one breaking-news escalation.
func (m *Chronicle) CountBreaking() {
	if m == nil {
		return
	}
	m.bulletins.Inc()
}

// SetUnread publishes the current inbox unread count.
func (m *Chronicle) SetUnread(n int) {
	if m == nil {
		return
	}
	m.unread.Set(float64(n))
}

// FeedClientConnected tracks a live-feed client joining (+1) or leaving (-1).
func (m *Chronicle) FeedClientConnected(delta int) {
	if m == nil {
		return
	}
	m.feedClients.Add(float64(delta))
}
