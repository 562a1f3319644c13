// Package indexer implements the finality-driven event ingester: it
// converts each finalized block's events into event-store mutations and
// gap-fills via a paginated initial sync after a restart.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/moonsong-labs/fisherman/pkg/chainrpc"
	"github.com/moonsong-labs/fisherman/pkg/config"
	"github.com/moonsong-labs/fisherman/pkg/ferr"
	"github.com/moonsong-labs/fisherman/pkg/log"
	"github.com/moonsong-labs/fisherman/pkg/metrics"
	"github.com/moonsong-labs/fisherman/pkg/store"
	"github.com/moonsong-labs/fisherman/pkg/types"
)

// Indexer is the sole writer of block-progress and event-driven tables.
// It owns one long-running loop that consumes finality notifications from
// a bounded channel and applies them, in order, to the event store.
type Indexer struct {
	rpc   *chainrpc.Client
	store store.Store
	cfg   config.Config
}

// New constructs an Indexer over rpc and store, configured per cfg.
func New(rpc *chainrpc.Client, st store.Store, cfg config.Config) *Indexer {
	return &Indexer{rpc: rpc, store: st, cfg: cfg}
}

// Run processes finality notifications until ctx is cancelled. On
// cancellation, Run finishes its in-flight transaction, commits, and
// returns — it does not abandon a block mid-apply.
func (ix *Indexer) Run(ctx context.Context) error {
	logger := log.WithComponent("indexer")

	if err := ix.catchUpOnStart(ctx, logger); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case head, ok := <-ix.rpc.Feed():
			if !ok {
				return ferr.New(ferr.Transient, "indexer.Run", fmt.Errorf("chain RPC feed closed"))
			}
			metrics.IndexerFinalizedHead.Set(float64(head.Height))
			if err := ix.catchUpTo(ctx, head.Height, logger); err != nil {
				logger.Error().Err(err).Msg("failed to catch up to finalized head; will retry on next notification")
			}
		}
	}
}

// catchUpOnStart resolves any gap between the persisted last_indexed_block
// and the chain's current finalized head before entering the main loop.
func (ix *Indexer) catchUpOnStart(ctx context.Context, logger zerolog.Logger) error {
	last, err := ix.store.LastIndexedBlock(ctx)
	if err != nil {
		return err
	}
	metrics.IndexerLastIndexedBlock.Set(float64(last))

	select {
	case head := <-ix.rpc.Feed():
		return ix.catchUpTo(ctx, head.Height, logger)
	case <-ctx.Done():
		return nil
	case <-time.After(0):
		// no notification buffered yet; the main loop will pick up the
		// first one that arrives.
		return nil
	}
}

// catchUpTo applies every block from last_indexed_block+1 through target,
// choosing sync mode (paginated) or normal mode (one block at a time)
// based on how far behind the store is.
func (ix *Indexer) catchUpTo(ctx context.Context, target uint64, logger zerolog.Logger) error {
	last, err := ix.store.LastIndexedBlock(ctx)
	if err != nil {
		return err
	}
	if target <= last {
		return nil
	}

	gap := target - last
	if gap > ix.cfg.SyncModeMinBlocksBehind {
		metrics.IndexerSyncMode.Set(1)
		logger.Info().Uint64("from", last+1).Uint64("to", target).Msg("entering sync mode")
		if err := ix.runSyncMode(ctx, target, logger); err != nil {
			return err
		}
		metrics.IndexerSyncMode.Set(0)
		logger.Info().Msg("coming out of sync mode")
		return nil
	}

	for h := last + 1; h <= target; h++ {
		if err := ix.applyBlock(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// runSyncMode pages through blocks incomplete_sync_page_size at a time, up
// to incomplete_sync_max per cycle; re-evaluates the gap afterward, since
// the finalized head may have advanced while syncing.
func (ix *Indexer) runSyncMode(ctx context.Context, target uint64, logger zerolog.Logger) error {
	processed := 0
	for processed < ix.cfg.IncompleteSyncMax {
		last, err := ix.store.LastIndexedBlock(ctx)
		if err != nil {
			return err
		}
		if last >= target {
			break
		}

		pageEnd := last + uint64(ix.cfg.IncompleteSyncPageSize)
		if pageEnd > target {
			pageEnd = target
		}

		for h := last + 1; h <= pageEnd; h++ {
			if err := ix.applyBlock(ctx, h); err != nil {
				return err
			}
			processed++
		}
	}

	last, err := ix.store.LastIndexedBlock(ctx)
	if err != nil {
		return err
	}
	if last < target {
		logger.Info().Uint64("last_indexed_block", last).Uint64("target", target).Msg("sync cycle bounded by incomplete_sync_max, resuming on next notification")
	} else {
		logger.Info().Msg("completed initial incomplete storage requests sync")
	}
	return nil
}

// applyBlock fetches a single block's events, applies them inside one
// transaction, advances last_indexed_block, and commits. Event application
// is idempotent via the (block_height, event_index) unique key, so a
// commit failure followed by re-dequeue and replay is always safe.
func (ix *Indexer) applyBlock(ctx context.Context, height uint64) error {
	timer := metrics.NewTimer()
	events, err := ix.rpc.BlockEvents(ctx, height)
	if err != nil {
		return err
	}

	if ix.cfg.IndexerMode == config.IndexerModeFishing {
		events = filterFishingEvents(events)
	}

	err = ix.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.InsertBlock(types.Block{Height: height, Finalized: true, IndexedAt: time.Now()}); err != nil {
			return err
		}
		for _, ev := range events {
			applied, err := tx.AlreadyApplied(ev.BlockHeight, ev.Index)
			if err != nil {
				return err
			}
			if applied {
				continue
			}
			if err := dispatch(tx, ev); err != nil {
				return err
			}
			if err := tx.MarkApplied(ev.BlockHeight, ev.Index); err != nil {
				return err
			}
			metrics.IndexerEventsAppliedTotal.WithLabelValues(string(ev.Kind)).Inc()
		}
		return tx.SetLastIndexedBlock(height)
	})
	if err != nil {
		metrics.IndexerCommitFailuresTotal.Inc()
		return err
	}

	timer.ObserveDuration(metrics.IndexerBlockApplyDuration)
	metrics.IndexerBlocksIndexedTotal.Inc()
	metrics.IndexerLastIndexedBlock.Set(float64(height))
	return nil
}

// fishingEvents is the subset of the event taxonomy relevant to deletion
// bookkeeping; indexer_mode=fishing drops everything else to shrink the
// store for an indexer that exists only to feed the fisherman.
var fishingEvents = map[string]bool{
	"NewStorageRequest":            true,
	"MspAcceptedStorageRequest":    true,
	"BspConfirmedStoring":          true,
	"StorageRequestRevoked":        true,
	"StorageRequestExpired":        true,
	"StorageRequestRejected":       true,
	"IncompleteStorageRequest":     true,
	"FileDeletionRequested":        true,
	"BspConfirmStoppedStoring":     true,
	"SpStopStoringInsolventUser":   true,
	"BspFileDeletionsCompleted":    true,
	"BucketFileDeletionsCompleted": true,
	"MspStoppedStoringBucket":      true,
	"BucketDeleted":                true,
}

func filterFishingEvents(events []types.Event) []types.Event {
	out := events[:0]
	for _, ev := range events {
		if fishingEvents[string(ev.Kind)] {
			out = append(out, ev)
		}
	}
	return out
}
