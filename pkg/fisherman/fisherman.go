// Package fisherman implements the periodic batch scheduler: it turns
// pending deletion intents into deleteFiles-class extrinsics, grouping by
// target so one tick produces at most one extrinsic per BSP and per bucket.
package fisherman

import (
	"context"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/moonsong-labs/fisherman/pkg/chainrpc"
	"github.com/moonsong-labs/fisherman/pkg/config"
	"github.com/moonsong-labs/fisherman/pkg/ferr"
	"github.com/moonsong-labs/fisherman/pkg/log"
	"github.com/moonsong-labs/fisherman/pkg/metrics"
	"github.com/moonsong-labs/fisherman/pkg/proof"
	"github.com/moonsong-labs/fisherman/pkg/store"
	"github.com/moonsong-labs/fisherman/pkg/types"
)

// Fisherman is the scheduler: single-writer on deletion-intent status
// transitions, read-only against everything else the store tracks.
type Fisherman struct {
	rpc   *chainrpc.Client
	store store.Store
	proof proof.Provider
	cfg   config.Config

	// tickMu, one per class, enforces "ticks never overlap for the same
	// intent class" while letting User and Incomplete ticks run concurrently.
	tickMu map[types.IntentClass]*sync.Mutex
}

// New constructs a Fisherman over rpc, st and proofProvider, configured per cfg.
func New(rpc *chainrpc.Client, st store.Store, proofProvider proof.Provider, cfg config.Config) *Fisherman {
	return &Fisherman{
		rpc:   rpc,
		store: st,
		proof: proofProvider,
		cfg:   cfg,
		tickMu: map[types.IntentClass]*sync.Mutex{
			types.IntentClassUser:       {},
			types.IntentClassIncomplete: {},
		},
	}
}

// Run drives the ticker until ctx is cancelled. Each class's tick runs in
// its own goroutine, so User and Incomplete batches run concurrently within
// a tick; Run waits for both before taking the next tick.
func (f *Fisherman) Run(ctx context.Context) error {
	logger := log.WithComponent("fisherman")
	ticker := time.NewTicker(f.cfg.BatchInterval)
	defer ticker.Stop()

	classes := []types.IntentClass{types.IntentClassUser, types.IntentClassIncomplete}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var wg sync.WaitGroup
			for _, class := range classes {
				class := class
				wg.Add(1)
				go func() {
					defer wg.Done()
					f.runTick(ctx, class, logger)
				}()
			}
			wg.Wait()
		}
	}
}

// runTick performs one class's cooperative pass: select, group, dispatch.
// Ticks for the same class never overlap (tickMu), so a slow tick simply
// delays the next one rather than running concurrently with it.
func (f *Fisherman) runTick(ctx context.Context, class types.IntentClass, logger zerolog.Logger) {
	mu := f.tickMu[class]
	if !mu.TryLock() {
		return
	}
	defer mu.Unlock()

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.TickDuration, string(class))
	metrics.TicksTotal.WithLabelValues(string(class)).Inc()

	intents, err := f.store.PendingIntents(ctx, class)
	if err != nil {
		logger.Error().Err(err).Str("class", string(class)).Msg("failed to load pending intents")
		return
	}
	metrics.PendingIntents.WithLabelValues(string(class)).Set(float64(len(intents)))
	if len(intents) == 0 {
		return
	}

	groups := groupByTarget(intents, f.signatureFor(ctx))

	runGroups(groups, f.cfg.MaxConcurrentTargets, func(g group) {
		targetKind := string(g.Target.Kind)
		batchID := uuid.New().String()
		batchLogger := logger.With().Str("batch_id", batchID).Logger()
		metrics.BatchSize.WithLabelValues(targetKind).Observe(float64(len(g.FileKeys)))

		if err := f.processGroup(ctx, g, batchLogger); err != nil {
			batchLogger.Error().Err(err).
				Str("class", string(g.Class)).
				Int("files", len(g.FileKeys)).
				Msg("deletion batch failed; will retry next tick")
			metrics.ExtrinsicsSubmittedTotal.WithLabelValues(targetKind, "failed").Inc()
			if ferr.KindOf(err) == ferr.Inconsistent {
				metrics.InconsistentRootTotal.Inc()
			}
			return
		}
		metrics.ExtrinsicsSubmittedTotal.WithLabelValues(targetKind, "finalized").Inc()
	})
}

// signatureFor resolves a file's stored user deletion signature; only
// called for User-class groups. A lookup failure yields a nil signature,
// the same as a missing signature; the chain rejects such a submission and
// SubmitExtrinsic reports the rejection as a Transient error.
func (f *Fisherman) signatureFor(ctx context.Context) func(types.FileKey) []byte {
	return func(file types.FileKey) []byte {
		sig, err := f.store.DeletionSignature(ctx, file)
		if err != nil {
			return nil
		}
		return sig
	}
}

// processGroup executes step 3 of the per-tick algorithm for one target:
// query root, request proof, build and submit the extrinsic, then confirm
// the completion event's claimed new_forest_root agrees with a fresh
// ForestRoot query against the same target. A missing event, an
// undecodable root, or a root that disagrees with the chain's current
// state all report Inconsistent: the intent stays pending and the next
// tick recomputes against the chain's actual state.
func (f *Fisherman) processGroup(ctx context.Context, g group, logger zerolog.Logger) error {
	root, err := f.rpc.ForestRoot(ctx, g.Target.Provider)
	if err != nil {
		return err
	}

	inclusion, err := f.proof.Prove(ctx, root, g.FileKeys)
	if err != nil {
		return err
	}

	extrinsic, err := buildExtrinsic(f.cfg, g, root, inclusion)
	if err != nil {
		return err
	}

	outcome, err := f.rpc.SubmitExtrinsic(ctx, extrinsic)
	if err != nil {
		return err
	}

	eventRoot, ok := completionRoot(outcome.Events)
	if !ok {
		return ferr.New(ferr.Inconsistent, "fisherman.processGroup",
			errInconsistentRoot{target: g.Target.Provider})
	}

	freshRoot, err := f.rpc.ForestRoot(ctx, g.Target.Provider)
	if err != nil {
		return err
	}
	if eventRoot != freshRoot {
		return ferr.New(ferr.Inconsistent, "fisherman.processGroup",
			errInconsistentRoot{target: g.Target.Provider})
	}

	logger.Info().
		Str("class", string(g.Class)).
		Int("files", len(g.FileKeys)).
		Uint64("finalized_block", outcome.BlockHeight).
		Msg("deletion batch finalized")
	return nil
}

// completionRoot looks for a deletions-completed event among events and
// decodes its new_forest_root field, the same "0x"-prefixed-hex convention
// the indexer's handleDeletionsCompleted reads the field under. Its return
// value is compared against a fresh ForestRoot query in processGroup,
// implementing the forest-root-agreement check: the event missing entirely,
// or its new_forest_root not decoding to 32 bytes, both report ok=false and
// fall back on the same Inconsistent verdict as a root that decodes but
// disagrees with the chain.
func completionRoot(events []types.Event) (types.ForestRoot, bool) {
	var root types.ForestRoot
	for _, ev := range events {
		if ev.Kind != types.EventBspFileDeletionsCompleted && ev.Kind != types.EventBucketFileDeletionsCompleted {
			continue
		}
		raw, ok := ev.Data["new_forest_root"].(string)
		if !ok {
			return root, false
		}
		b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
		if err != nil || len(b) != len(root) {
			return root, false
		}
		copy(root[:], b)
		return root, true
	}
	return root, false
}

type errInconsistentRoot struct {
	target types.ProviderID
}

func (e errInconsistentRoot) Error() string {
	return "post-deletion forest root mismatch for provider " + hexString(e.target[:])
}

func hexString(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0xF]
	}
	return string(out)
}
