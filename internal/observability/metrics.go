// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the tracker.
// All Record methods are safe on a nil receiver.
type Metrics struct {
	// Stream metrics
	NotificationsReceived prometheus.Counter
	StreamState           *prometheus.GaugeVec
	StreamReconnects      prometheus.Counter
	SubscribedAddresses   prometheus.Gauge
	HighestSlotSeen       prometheus.Gauge

	// Pipeline metrics
	TransactionsFetched     *prometheus.CounterVec
	TxCacheHits             prometheus.Counter
	DecisionsTotal          *prometheus.CounterVec
	NotificationsSuppressed *prometheus.CounterVec
	NotificationsDelivered  *prometheus.CounterVec
	HandleLatency           prometheus.Histogram

	// Dependency metrics
	RPCCallLatency       *prometheus.HistogramVec
	RPCCallErrors        *prometheus.CounterVec
	PersistLatency       prometheus.Histogram
	PersistErrors        prometheus.Counter
	MetadataCacheLookups *prometheus.CounterVec
	JournalErrors        prometheus.Counter
}

// NewMetrics creates and registers the tracker metrics on reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "wallet_tracker"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		NotificationsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "log_notifications_total",
			Help:      "Total number of log notifications received",
		}),
		StreamState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "state",
			Help:      "1 for the current stream state, 0 otherwise",
		}, []string{"state"}),
		StreamReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of stream reconnect attempts",
		}),
		SubscribedAddresses: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "subscribed_addresses",
			Help:      "Number of addresses with a live log subscription",
		}),
		HighestSlotSeen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen in notifications",
		}),

		TransactionsFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "transactions_fetched_total",
			Help:      "Transaction lookups by result",
		}, []string{"result"}),
		TxCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "transaction_cache_hits_total",
			Help:      "Transaction lookups served from cache",
		}),
		DecisionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "decisions_total",
			Help:      "Classified wallet activity by category",
		}, []string{"category"}),
		NotificationsSuppressed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "notifications_suppressed_total",
			Help:      "Notifications dropped by per-wallet filters",
		}, []string{"reason"}),
		NotificationsDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Notification delivery attempts by status",
		}, []string{"status"}),
		HandleLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "handle_latency_seconds",
			Help:      "Time to fully handle one log notification",
			Buckets:   prometheus.DefBuckets,
		}),

		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Failed Solana RPC calls",
		}, []string{"method"}),
		PersistLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "persist_latency_seconds",
			Help:      "Subscription state persist latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		PersistErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "state",
			Name:      "persist_errors_total",
			Help:      "Failed subscription state persists",
		}),
		MetadataCacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "cache_lookups_total",
			Help:      "Token metadata cache lookups by result",
		}, []string{"result"}),
		JournalErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "journal_errors_total",
			Help:      "Failed activity journal writes",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a /metrics handler serving the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordNotification counts one inbound log notification.
func (m *Metrics) RecordNotification(slot int64) {
	if m == nil {
		return
	}
	m.NotificationsReceived.Inc()
	if slot > 0 {
		m.HighestSlotSeen.Set(float64(slot))
	}
}

// SetStreamState marks state as the current stream state.
func (m *Metrics) SetStreamState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.StreamState.WithLabelValues(s).Set(v)
	}
}

// RecordReconnect counts one reconnect attempt.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.StreamReconnects.Inc()
}

// SetSubscribed updates the subscribed address gauge.
func (m *Metrics) SetSubscribed(n int) {
	if m == nil {
		return
	}
	m.SubscribedAddresses.Set(float64(n))
}

// RecordFetch counts a transaction lookup. result is "ok", "absent" or "cached".
func (m *Metrics) RecordFetch(result string) {
	if m == nil {
		return
	}
	if result == "cached" {
		m.TxCacheHits.Inc()
	}
	m.TransactionsFetched.WithLabelValues(result).Inc()
}

// RecordDecision counts a classified event.
func (m *Metrics) RecordDecision(category string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(category).Inc()
}

// RecordSuppressed counts a filtered notification.
func (m *Metrics) RecordSuppressed(reason string) {
	if m == nil {
		return
	}
	m.NotificationsSuppressed.WithLabelValues(reason).Inc()
}

// RecordDelivery counts a delivery attempt.
func (m *Metrics) RecordDelivery(err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.NotificationsDelivered.WithLabelValues(status).Inc()
}

// RecordHandle observes the time spent on one notification.
func (m *Metrics) RecordHandle(d time.Duration) {
	if m == nil {
		return
	}
	m.HandleLatency.Observe(d.Seconds())
}

// RecordRPC records RPC call latency and errors.
func (m *Metrics) RecordRPC(method string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(method).Observe(d.Seconds())
	if err != nil {
		m.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordPersist records a subscription state persist.
func (m *Metrics) RecordPersist(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.PersistLatency.Observe(d.Seconds())
	if err != nil {
		m.PersistErrors.Inc()
	}
}

// RecordMetadataLookup counts a metadata cache lookup.
func (m *Metrics) RecordMetadataLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.MetadataCacheLookups.WithLabelValues(result).Inc()
}

// RecordJournalError counts a failed journal write.
func (m *Metrics) RecordJournalError() {
	if m == nil {
		return
	}
	m.JournalErrors.Inc()
}
