package indexer

import (
	"fmt"
	"time"

	"github.com/moonsong-labs/fisherman/pkg/ferr"
	"github.com/moonsong-labs/fisherman/pkg/store"
	"github.com/moonsong-labs/fisherman/pkg/types"
)

// dispatch applies a single decoded chain event to the store, following
// the event taxonomy table: each case performs exactly the mutation that
// table names for its event kind.
func dispatch(tx *store.Tx, ev types.Event) error {
	switch ev.Kind {
	case types.EventNewBucket:
		return handleNewBucket(tx, ev)
	case types.EventBucketDeleted:
		return handleBucketDeleted(tx, ev)
	case types.EventMoveBucketAccepted:
		return handleMoveBucketAccepted(tx, ev)
	case types.EventMspStoppedStoringBucket:
		return handleMspStoppedStoringBucket(tx, ev)
	case types.EventNewStorageRequest:
		return handleNewStorageRequest(tx, ev)
	case types.EventMspAcceptedStorageRequest:
		return handleAssociation(tx, ev, types.ProviderKindMSP)
	case types.EventBspConfirmedStoring:
		return handleBspConfirmedStoring(tx, ev)
	case types.EventStorageRequestFulfilled:
		return handleStorageRequestFulfilled(tx, ev)
	case types.EventStorageRequestRevoked, types.EventStorageRequestExpired,
		types.EventStorageRequestRejected, types.EventIncompleteStorageRequest:
		return handleIncompleteStorageRequest(tx, ev)
	case types.EventFileDeletionRequested:
		return handleFileDeletionRequested(tx, ev)
	case types.EventBspRequestedToStopStoring:
		return nil // no store mutation until BspConfirmStoppedStoring
	case types.EventBspConfirmStoppedStoring:
		return handleRemoveAssociation(tx, ev, types.ProviderKindBSP)
	case types.EventSpStopStoringInsolventUser:
		return handleSpStopStoringInsolventUser(tx, ev)
	case types.EventBspFileDeletionsCompleted:
		return handleDeletionsCompleted(tx, ev, types.ProviderKindBSP)
	case types.EventBucketFileDeletionsCompleted:
		return handleDeletionsCompleted(tx, ev, types.ProviderKindMSP)
	default:
		return ferr.New(ferr.Fatal, "indexer.dispatch", fmt.Errorf("unrecognized event kind %q", ev.Kind))
	}
}

func handleNewBucket(tx *store.Tx, ev types.Event) error {
	b := types.Bucket{
		ID:    fieldBytes32(ev, "bucket_id"),
		Name:  fieldString(ev, "name"),
		Owner: fieldBytes20(ev, "owner"),
	}
	if raw, ok := fieldBytes32OK(ev, "msp_id"); ok {
		msp := types.ProviderID(raw)
		b.MSP = &msp
	}
	return tx.UpsertBucket(b)
}

func handleBucketDeleted(tx *store.Tx, ev types.Event) error {
	return tx.SetBucketDeleted(fieldBytes32(ev, "bucket_id"))
}

func handleMoveBucketAccepted(tx *store.Tx, ev types.Event) error {
	newMSP := fieldBytes32AsProvider(ev, "new_msp_id")
	b := types.Bucket{
		ID:  fieldBytes32(ev, "bucket_id"),
		MSP: &newMSP,
	}
	return tx.UpsertBucket(b)
}

func handleMspStoppedStoringBucket(tx *store.Tx, ev types.Event) error {
	return tx.ClearBucketMSP(fieldBytes32(ev, "bucket_id"))
}

func handleNewStorageRequest(tx *store.Tx, ev types.Event) error {
	f := types.File{
		FileKey:        fieldBytes32(ev, "file_key"),
		Fingerprint:    fieldBytes32(ev, "fingerprint"),
		Owner:          fieldBytes20(ev, "owner"),
		Bucket:         fieldBytes32(ev, "bucket_id"),
		Location:       fieldString(ev, "location"),
		Size:           fieldUint64(ev, "size"),
		CreatedAtBlock: ev.BlockHeight,
	}
	return tx.UpsertFile(f)
}

// handleAssociation handles MspAcceptedStorageRequest, which binds a single
// file to its bucket's MSP.
func handleAssociation(tx *store.Tx, ev types.Event, kind types.ProviderKind) error {
	assoc := types.ProviderFileAssociation{
		Provider:    fieldBytes32AsProvider(ev, "provider_id"),
		Kind:        kind,
		File:        fieldBytes32(ev, "file_key"),
		StoredSince: time.Now(),
	}
	return tx.CreateAssociation(assoc)
}

// handleBspConfirmedStoring is batch-aware: the event may carry a list of
// file keys confirmed in one extrinsic.
func handleBspConfirmedStoring(tx *store.Tx, ev types.Event) error {
	provider := fieldBytes32AsProvider(ev, "provider_id")
	keys := fieldBytes32List(ev, "file_keys")
	if len(keys) == 0 {
		keys = []types.FileKey{fieldBytes32(ev, "file_key")}
	}
	for _, key := range keys {
		assoc := types.ProviderFileAssociation{
			Provider:    provider,
			Kind:        types.ProviderKindBSP,
			File:        key,
			StoredSince: time.Now(),
		}
		if err := tx.CreateAssociation(assoc); err != nil {
			return err
		}
	}
	return nil
}

func handleStorageRequestFulfilled(tx *store.Tx, ev types.Event) error {
	return tx.MarkFileFulfilled(fieldBytes32(ev, "file_key"))
}

// handleIncompleteStorageRequest covers StorageRequestRevoked,
// StorageRequestExpired, StorageRequestRejected, and the explicit
// IncompleteStorageRequest event: each creates an Incomplete deletion
// intent per (provider, file) association that still exists, so the
// fisherman can instruct every BSP/MSP that confirmed storing the file to
// delete it.
//
// When no association exists yet — the common case for a rejection, which
// fires before any BSP ever confirms — there is nothing to instruct anyone
// to delete. The request was never stored anywhere, so its file row is
// removed directly (when no pending intent still references it) rather
// than producing an intent with no dispatchable target.
func handleIncompleteStorageRequest(tx *store.Tx, ev types.Event) error {
	fileKey := fieldBytes32(ev, "file_key")
	bucketID := fieldBytes32(ev, "bucket_id")

	assocs, err := remainingAssociationsForIntent(tx, fileKey)
	if err != nil {
		return err
	}
	if len(assocs) == 0 {
		pending, err := tx.RemainingPendingIntentCount(fileKey)
		if err != nil {
			return err
		}
		if pending == 0 {
			return tx.DeleteFile(fileKey)
		}
		return nil
	}
	for _, a := range assocs {
		provider := a.Provider
		if err := tx.CreateIntent(types.DeletionIntent{
			Class:          types.IntentClassIncomplete,
			File:           fileKey,
			Bucket:         bucketID,
			Provider:       &provider,
			Kind:           a.Kind,
			CreatedAtBlock: ev.BlockHeight,
		}); err != nil {
			return err
		}
	}
	return nil
}

func handleFileDeletionRequested(tx *store.Tx, ev types.Event) error {
	fileKey := fieldBytes32(ev, "file_key")
	bucketID := fieldBytes32(ev, "bucket_id")
	sig := fieldBytesSlice(ev, "signature")

	// I2: a file has at most one user deletion signature, immutable once set.
	has, err := tx.HasDeletionSignature(fileKey)
	if err != nil {
		return err
	}
	if !has {
		if err := tx.SetDeletionSignature(fileKey, sig); err != nil {
			return err
		}
	}

	assocs, err := remainingAssociationsForIntent(tx, fileKey)
	if err != nil {
		return err
	}
	for _, a := range assocs {
		provider := a.Provider
		if err := tx.CreateIntent(types.DeletionIntent{
			Class:          types.IntentClassUser,
			File:           fileKey,
			Bucket:         bucketID,
			Provider:       &provider,
			Kind:           a.Kind,
			CreatedAtBlock: ev.BlockHeight,
		}); err != nil {
			return err
		}
	}
	return nil
}

func handleRemoveAssociation(tx *store.Tx, ev types.Event, kind types.ProviderKind) error {
	provider := fieldBytes32AsProvider(ev, "provider_id")
	fileKey := fieldBytes32(ev, "file_key")
	return tx.RemoveAssociation(kind, provider, fileKey)
}

func handleSpStopStoringInsolventUser(tx *store.Tx, ev types.Event) error {
	return tx.RemoveAllBSPAssociationsForOwner(fieldBytes20(ev, "owner"))
}

// handleDeletionsCompleted implements the file-row cleanup rule shared by
// BspFileDeletionsCompleted and BucketFileDeletionsCompleted: for each
// included file key, remove the (provider, file) association and its now-
// satisfied intent, and delete the file row if nothing else references it.
func handleDeletionsCompleted(tx *store.Tx, ev types.Event, kind types.ProviderKind) error {
	provider := fieldBytes32AsProvider(ev, "provider_id")
	keys := fieldBytes32List(ev, "file_keys")
	if len(keys) == 0 {
		keys = []types.FileKey{fieldBytes32(ev, "file_key")}
	}
	if root, ok := fieldBytes32OK(ev, "new_forest_root"); ok {
		if err := tx.UpsertProviderForestRoot(kind, provider, root); err != nil {
			return err
		}
	}

	for _, key := range keys {
		if err := tx.RemoveAssociation(kind, provider, key); err != nil {
			return err
		}
		if err := tx.DeleteIntentsForCompletion(key, kind, provider); err != nil {
			return err
		}

		remaining, err := tx.RemainingAssociationCount(key)
		if err != nil {
			return err
		}
		pending, err := tx.RemainingPendingIntentCount(key)
		if err != nil {
			return err
		}
		if remaining == 0 && pending == 0 {
			if err := tx.DeleteFile(key); err != nil {
				return err
			}
		}
	}
	return nil
}

func remainingAssociationsForIntent(tx *store.Tx, file types.FileKey) ([]types.ProviderFileAssociation, error) {
	// Store.FileAssociations is a Store-level read outside the transaction;
	// Tx.AssociationsForFile reads inside it, so a handler sees its own
	// prior writes.
	return tx.AssociationsForFile(file)
}
