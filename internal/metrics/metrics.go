// Package metrics is the Prometheus instrumentation surface, served at
// /metrics on the main HTTP control surface port (monitoring.prometheus_port
// is not read). Grounded on cartographus's
// internal/metrics package (promauto-registered vars plus small Record*
// helpers), scoped down to this gateway's dedup/routing/fanout/relay
// domain.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DedupAdmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "novarelay_dedup_admitted_total",
		Help: "Total number of events admitted as new by the dedup store",
	})

	DedupDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "novarelay_dedup_duplicates_total",
		Help: "Total number of events rejected as duplicates by the dedup store",
	})

	DedupStoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "novarelay_dedup_store_errors_total",
		Help: "Total number of persistent tier errors encountered during dedup probes",
	})

	PolicyRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "novarelay_policy_rejected_total",
		Help: "Total number of events rejected by the routing policy filter",
	})

	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "novarelay_batch_size",
		Help:    "Number of events in each sealed batch",
		Buckets: []float64{1, 8, 32, 64, 128, 256, 512, 1024},
	})

	BatchFlushLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "novarelay_batch_flush_latency_seconds",
		Help:    "Time from a batch's first event to its seal",
		Buckets: prometheus.DefBuckets,
	})

	RelayStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "novarelay_relay_status",
		Help: "Relay pool endpoint status (0=disconnected,1=connecting,2=connected,3=backoff,4=unhealthy,5=removed)",
	}, []string{"url"})

	RelayConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "novarelay_relay_connections",
		Help: "Current number of relay pool endpoints",
	})

	FanoutSinkDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "novarelay_fanout_sink_dropped_total",
		Help: "Total number of batches dropped by a fanout sink due to lag",
	}, []string{"sink"})

	FanoutSinkQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "novarelay_fanout_sink_queue_depth",
		Help: "Current queue depth of a fanout sink",
	}, []string{"sink"})

	RelayInvalidSignatures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "novarelay_relay_invalid_signatures_total",
		Help: "Total number of ingested events dropped for failing signature verification",
	})
)

// RecordBatch records one sealed batch's size and the latency from its
// first event to its seal.
func RecordBatch(size int, age time.Duration) {
	BatchSize.Observe(float64(size))
	BatchFlushLatency.Observe(age.Seconds())
}

// RelaySnapshot is the minimal view of a pool endpoint RecordRelayPool
// needs; callers copy URL and Status from relaypool.Snapshot into it, so
// this package does not import relaypool.
type RelaySnapshot struct {
	URL    string
	Status string
}

var statusValue = map[string]float64{
	"disconnected": 0,
	"connecting":   1,
	"connected":    2,
	"backoff":      3,
	"unhealthy":    4,
	"removed":      5,
}

// RecordRelayPool updates the per-endpoint status gauge and the pool size
// gauge from a point-in-time list of endpoint snapshots.
func RecordRelayPool(snapshots []RelaySnapshot) {
	RelayConnections.Set(float64(len(snapshots)))
	for _, s := range snapshots {
		RelayStatus.WithLabelValues(s.URL).Set(statusValue[s.Status])
	}
}

// FanoutSinkStats is the minimal view of a sink's backlog RecordFanoutBus
// needs; fanout.SinkStats satisfies it without this package importing
// fanout.
type FanoutSinkStats struct {
	QueueDepth int
	Dropped    uint64
}

var (
	lastDroppedMu sync.Mutex
	lastDropped   = map[string]uint64{}

	lastInvalidSigMu sync.Mutex
	lastInvalidSig   int64
)

// RecordInvalidSignatures adds the delta since the last call to the
// cumulative invalid-signature counter, since Pool.InvalidSignatures
// reports a running total rather than a per-interval count.
func RecordInvalidSignatures(total int64) {
	lastInvalidSigMu.Lock()
	defer lastInvalidSigMu.Unlock()
	if delta := total - lastInvalidSig; delta > 0 {
		RelayInvalidSignatures.Add(float64(delta))
	}
	lastInvalidSig = total
}

// RecordFanoutBus updates the per-sink queue depth gauge and adds the
// delta since the last call to the cumulative drop counter, since
// LagStats reports a running total rather than a per-interval count.
func RecordFanoutBus(stats map[string]FanoutSinkStats) {
	lastDroppedMu.Lock()
	defer lastDroppedMu.Unlock()
	for id, s := range stats {
		FanoutSinkQueueDepth.WithLabelValues(id).Set(float64(s.QueueDepth))
		delta := s.Dropped - lastDropped[id]
		if delta > 0 {
			FanoutSinkDropped.WithLabelValues(id).Add(float64(delta))
		}
		lastDropped[id] = s.Dropped
	}
}
