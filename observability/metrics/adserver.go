package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"adserver/core/events"
)

// AdServerMetrics tracks registry command, query and event activity.
type AdServerMetrics struct {
	commands *prometheus.CounterVec
	queries  *prometheus.CounterVec
	events   *prometheus.CounterVec
	served   prometheus.Counter
	total    prometheus.Gauge
	latency  *prometheus.HistogramVec
}

var (
	adServerOnce     sync.Once
	adServerRegistry *AdServerMetrics
)

// AdServer returns the lazily-initialised metrics registered against the
// default Prometheus registerer.
func AdServer() *AdServerMetrics {
	adServerOnce.Do(func() {
		adServerRegistry = NewAdServer(prometheus.DefaultRegisterer)
	})
	return adServerRegistry
}

// NewAdServer builds and registers a metrics set against reg.
func NewAdServer(reg prometheus.Registerer) *AdServerMetrics {
	m := &AdServerMetrics{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adserver",
			Name:      "commands_total",
			Help:      "Registry commands segmented by command and outcome.",
		}, []string{"command", "outcome"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adserver",
			Name:      "queries_total",
			Help:      "Registry queries segmented by query and outcome.",
		}, []string{"query", "outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adserver",
			Name:      "events_total",
			Help:      "Structured events emitted by the registry, by type.",
		}, []string{"type"}),
		served: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adserver",
			Name:      "ads_served_total",
			Help:      "Impressions recorded since process start.",
		}),
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "adserver",
			Name:      "total_views",
			Help:      "Lifetime impressions held in the registry.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "adserver",
			Name:      "handler_duration_seconds",
			Help:      "Latency of registry handlers including the store round-trip.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
	}
	if reg != nil {
		reg.MustRegister(m.commands, m.queries, m.events, m.served, m.total, m.latency)
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveCommand records the outcome and latency of a command.
func (m *AdServerMetrics) ObserveCommand(command string, started time.Time, err error) {
	if m == nil {
		return
	}
	if command == "" {
		command = "unknown"
	}
	m.commands.WithLabelValues(command, outcome(err)).Inc()
	m.latency.WithLabelValues(command).Observe(time.Since(started).Seconds())
}

// ObserveQuery records the outcome and latency of a query.
func (m *AdServerMetrics) ObserveQuery(query string, started time.Time, err error) {
	if m == nil {
		return
	}
	if query == "" {
		query = "unknown"
	}
	m.queries.WithLabelValues(query, outcome(err)).Inc()
	m.latency.WithLabelValues(query).Observe(time.Since(started).Seconds())
}

// Emit implements events.Emitter so the metrics set can observe every event.
func (m *AdServerMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	typ := evt.EventType()
	if typ == "" {
		typ = "unknown"
	}
	m.events.WithLabelValues(typ).Inc()
	if typ == "serve_ad" {
		m.served.Inc()
	}
}

// SetTotalViews records the registry's lifetime view count.
func (m *AdServerMetrics) SetTotalViews(total uint64) {
	if m == nil {
		return
	}
	m.total.Set(float64(total))
}
