package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Indexer metrics
	IndexerLastIndexedBlock = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fisherman_indexer_last_indexed_block",
			Help: "Height of the last block committed to the event store",
		},
	)

	IndexerFinalizedHead = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fisherman_indexer_finalized_head",
			Help: "Height of the chain's current finalized head as observed by the indexer",
		},
	)

	IndexerSyncMode = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fisherman_indexer_sync_mode",
			Help: "Whether the indexer is in paginated sync mode (1) or normal mode (0)",
		},
	)

	IndexerBlocksIndexedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fisherman_indexer_blocks_indexed_total",
			Help: "Total number of blocks committed to the event store",
		},
	)

	IndexerEventsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fisherman_indexer_events_applied_total",
			Help: "Total number of chain events applied by kind",
		},
		[]string{"kind"},
	)

	IndexerBlockApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fisherman_indexer_block_apply_duration_seconds",
			Help:    "Time taken to apply a single block's events and commit",
			Buckets: prometheus.DefBuckets,
		},
	)

	IndexerCommitFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fisherman_indexer_commit_failures_total",
			Help: "Total number of block-commit failures (block is re-dequeued on next notification)",
		},
	)

	// Fisherman scheduler metrics
	TickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fisherman_tick_duration_seconds",
			Help:    "Time taken for one scheduler tick by intent class",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"class"},
	)

	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fisherman_ticks_total",
			Help: "Total number of scheduler ticks by intent class",
		},
		[]string{"class"},
	)

	PendingIntents = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fisherman_pending_intents",
			Help: "Number of pending deletion intents by class",
		},
		[]string{"class"},
	)

	ExtrinsicsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fisherman_extrinsics_submitted_total",
			Help: "Total number of deletion extrinsics submitted, by target kind and outcome",
		},
		[]string{"target_kind", "outcome"},
	)

	BatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fisherman_batch_size_files",
			Help:    "Number of file keys included per submitted batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"target_kind"},
	)

	ProofFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fisherman_proof_fetch_duration_seconds",
			Help:    "Time taken to obtain an inclusion proof from the forest-proof provider",
			Buckets: prometheus.DefBuckets,
		},
	)

	StaleProofRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fisherman_stale_proof_retries_total",
			Help: "Total number of retries triggered by a forest root changing underneath a build",
		},
	)

	InconsistentRootTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fisherman_inconsistent_root_total",
			Help: "Total number of post-extrinsic forest-root mismatches observed",
		},
	)

	// Chain RPC metrics
	ChainRPCCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fisherman_chain_rpc_call_duration_seconds",
			Help:    "Chain RPC call duration in seconds by method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	ChainRPCErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fisherman_chain_rpc_errors_total",
			Help: "Total number of chain RPC errors by method",
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		IndexerLastIndexedBlock,
		IndexerFinalizedHead,
		IndexerSyncMode,
		IndexerBlocksIndexedTotal,
		IndexerEventsAppliedTotal,
		IndexerBlockApplyDuration,
		IndexerCommitFailuresTotal,
		TickDuration,
		TicksTotal,
		PendingIntents,
		ExtrinsicsSubmittedTotal,
		BatchSize,
		ProofFetchDuration,
		StaleProofRetriesTotal,
		InconsistentRootTotal,
		ChainRPCCallDuration,
		ChainRPCErrorsTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
