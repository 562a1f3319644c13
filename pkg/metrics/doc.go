/*
Package metrics provides Prometheus metrics collection and exposition for
the fisherman, plus the component-health registry backing its readiness
endpoint.

All metrics are registered against the global Prometheus registry at package
init and exposed via promhttp on /metrics.

# Metrics catalog

Indexer:

	fisherman_indexer_last_indexed_block        gauge   height last committed to the store
	fisherman_indexer_finalized_head            gauge   chain's current finalized head
	fisherman_indexer_sync_mode                 gauge   1 while in paginated catch-up, else 0
	fisherman_indexer_blocks_indexed_total       counter blocks committed
	fisherman_indexer_events_applied_total{kind} counter events applied, by event kind
	fisherman_indexer_block_apply_duration_seconds       histogram
	fisherman_indexer_commit_failures_total      counter commit failures (block is re-dequeued)

Scheduler:

	fisherman_tick_duration_seconds{class}       histogram  per-tick duration by intent class
	fisherman_ticks_total{class}                 counter    ticks run by intent class
	fisherman_pending_intents{class}             gauge      pending deletion intents by class
	fisherman_extrinsics_submitted_total{target_kind,outcome} counter
	fisherman_batch_size_files{target_kind}      histogram  file keys per submitted batch
	fisherman_proof_fetch_duration_seconds       histogram  forest-proof provider latency
	fisherman_stale_proof_retries_total          counter    retries from a forest root moving mid-build
	fisherman_inconsistent_root_total            counter    post-submission forest-root mismatches

Chain RPC:

	fisherman_chain_rpc_call_duration_seconds{method}  histogram
	fisherman_chain_rpc_errors_total{method}           counter

# Timer helper

Timer wraps a start time; ObserveDuration/ObserveDurationVec record the
elapsed time to a histogram at the end of an operation:

	timer := metrics.NewTimer()
	err := doWork()
	timer.ObserveDuration(metrics.ProofFetchDuration)

# Health and readiness

health.go maintains a small in-memory registry of named components
(currently "chain_rpc", "store", "proof_provider", "db") each with a
healthy/unhealthy flag and message. HealthHandler/ReadyHandler/
LivenessHandler expose this as /health, /ready, /live; readiness additionally
requires the components listed in criticalComponents ("chain_rpc", "store")
to be healthy — the proof provider and database probes update their
components but never gate readiness, since a fisherman with no pending
deletions never needs either.

collector.go is what keeps "proof_provider" and "db" current: on each tick
it probes them via pkg/health's HTTPChecker/TCPChecker and debounces the
result through health.Status before calling UpdateComponent. "chain_rpc" and
"store" are instead registered reactively by cmd/fisherman, once at startup
when the dial/open succeeds; a failed dial/open aborts startup instead.
*/
package metrics
