package netsync

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/timecoin/walletsync/errors"
)

var (
	// bootstrap and refresh outcomes, labelled by result
	prometheusNetSyncBootstrap *prometheus.CounterVec
	prometheusNetSyncRefresh   *prometheus.CounterVec
	// where the registry came from on the last bootstrap: discovery or fallback
	prometheusNetSyncPeerSource *prometheus.CounterVec
	// per-peer status request latency
	prometheusNetSyncStatusFetchDuration prometheus.Histogram
	// per-peer failures by reason
	prometheusNetSyncPeerFailures *prometheus.CounterVec
	prometheusNetSyncRegistrySize prometheus.Gauge
	prometheusNetSyncHeight       prometheus.Gauge
	prometheusNetSyncSynced       prometheus.Gauge
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusNetSyncBootstrap = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletsync",
			Subsystem: "netsync",
			Name:      "bootstrap_total",
			Help:      "Number of bootstrap attempts by result",
		},
		[]string{"result"},
	)

	prometheusNetSyncRefresh = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletsync",
			Subsystem: "netsync",
			Name:      "refresh_total",
			Help:      "Number of refresh attempts by result",
		},
		[]string{"result"},
	)

	prometheusNetSyncPeerSource = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletsync",
			Subsystem: "netsync",
			Name:      "peer_source_total",
			Help:      "Number of times the peer registry was populated from each source",
		},
		[]string{"source"},
	)

	prometheusNetSyncStatusFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "walletsync",
			Subsystem: "netsync",
			Name:      "status_fetch_duration_seconds",
			Help:      "Duration of single peer chain status requests",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
	)

	prometheusNetSyncPeerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "walletsync",
			Subsystem: "netsync",
			Name:      "peer_failures_total",
			Help:      "Number of failed peer status requests by reason",
		},
		[]string{"reason"},
	)

	prometheusNetSyncRegistrySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletsync",
			Subsystem: "netsync",
			Name:      "registry_peers",
			Help:      "Number of peers in the registry",
		},
	)

	prometheusNetSyncHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletsync",
			Subsystem: "netsync",
			Name:      "network_block_height",
			Help:      "Last chain height reported by a peer",
		},
	)

	prometheusNetSyncSynced = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "walletsync",
			Subsystem: "netsync",
			Name:      "synced",
			Help:      "1 when the session is synced, 0 otherwise",
		},
	)
}

func failureReason(err error) string {
	switch errors.CodeOf(err) {
	case errors.ERR_PEER_TIMEOUT:
		return "timeout"
	case errors.ERR_PEER_UNREACHABLE:
		return "unreachable"
	case errors.ERR_PEER_RESPONSE_INVALID:
		return "invalid_response"
	default:
		return "other"
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}

	return 0
}
