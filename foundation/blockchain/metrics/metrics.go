// Package metrics exposes the node's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ubilog"

var (
	chainBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "blocks",
		Help:      "Number of blocks linked into the block tree, genesis included.",
	})

	chainPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "pending_blocks",
		Help:      "Number of blocks waiting on a missing parent.",
	})

	chainSeen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "seen_blocks",
		Help:      "Number of block hashes ever processed.",
	})

	chainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "chain",
		Name:      "tip_height",
		Help:      "Height of the canonical tip.",
	})

	poolSlices = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "mempool",
		Name:      "slices",
		Help:      "Number of slices waiting to be mined.",
	})

	peersKnown = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "peer",
		Name:      "known",
		Help:      "Number of known peers.",
	})

	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "network",
		Name:      "messages_total",
		Help:      "Count of messages handled by direction and kind.",
	}, []string{"direction", "kind"})

	decodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "network",
		Name:      "decode_errors_total",
		Help:      "Count of datagrams that failed to decode.",
	})

	minedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "miner",
		Name:      "blocks_total",
		Help:      "Count of blocks mined by this node.",
	})

	mineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "miner",
		Name:      "round_duration_seconds",
		Help:      "Duration of a bounded mining round.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	loadErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "load_errors_total",
		Help:      "Count of stored blocks skipped because they could not be read.",
	})

	saveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "save_duration_seconds",
		Help:      "Duration of saving the canonical chain.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})
)

// ChainStats carries the sizes reported by the chain.
type ChainStats struct {
	Blocks  int
	Pending int
	Seen    int
	Height  uint64
}

// ObserveChain records the current chain sizes.
func ObserveChain(s ChainStats) {
	chainBlocks.Set(float64(s.Blocks))
	chainPending.Set(float64(s.Pending))
	chainSeen.Set(float64(s.Seen))
	chainHeight.Set(float64(s.Height))
}

// ObservePool records the number of pooled slices.
func ObservePool(n int) {
	poolSlices.Set(float64(n))
}

// ObservePeers records the number of known peers.
func ObservePeers(n int) {
	peersKnown.Set(float64(n))
}

// ObserveReceived counts a message that arrived.
func ObserveReceived(kind string) {
	messagesTotal.WithLabelValues("in", kind).Inc()
}

// ObserveSent counts a message that left.
func ObserveSent(kind string) {
	messagesTotal.WithLabelValues("out", kind).Inc()
}

// ObserveDecodeError counts a datagram that could not be decoded.
func ObserveDecodeError() {
	decodeErrorsTotal.Inc()
}

// ObserveMineRound records a mining round and whether it found a block.
func ObserveMineRound(found bool, started time.Time) {
	mineDuration.Observe(time.Since(started).Seconds())
	if found {
		minedTotal.Inc()
	}
}

// ObserveLoadError counts a stored block that could not be read back.
func ObserveLoadError() {
	loadErrorsTotal.Inc()
}

// ObserveSave records a save of the canonical chain.
func ObserveSave(err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}
	saveDuration.WithLabelValues(status).Observe(time.Since(started).Seconds())
}
