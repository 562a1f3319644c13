package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/moonsong-labs/fisherman/pkg/store"
	"github.com/moonsong-labs/fisherman/pkg/testsupport"
	"github.com/moonsong-labs/fisherman/pkg/types"
)

func makeFileKeyDT(b byte) types.FileKey {
	var f types.FileKey
	f[0] = b
	return f
}

func makeBucketIDDT(b byte) types.BucketID {
	var bk types.BucketID
	bk[0] = b
	return bk
}

func makeProviderDT(b byte) types.ProviderID {
	var p types.ProviderID
	p[0] = b
	return p
}

// A StorageRequestRejected/Revoked/Expired/IncompleteStorageRequest event
// for a file no BSP or MSP ever confirmed storing has nothing dispatchable
// to do: the file row is removed directly instead of producing a deletion
// intent with no target (see the fisherman package's group_test.go
// TestGroupByTargetSkipsBucketOnlyReservations for why such an intent
// would otherwise sit forever unactioned).
func TestHandleIncompleteStorageRequestDeletesUnassociatedFile(t *testing.T) {
	st := testsupport.NewTestStore(t)
	ctx := context.Background()
	fileKey := makeFileKeyDT(0x01)
	bucketID := makeBucketIDDT(0xAA)

	err := st.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.UpsertFile(types.File{
			FileKey: fileKey, Bucket: bucketID, Location: "/a/b", CreatedAtBlock: 1,
		}); err != nil {
			return err
		}
		return dispatch(tx, types.Event{
			Kind:        types.EventStorageRequestRejected,
			BlockHeight: 2,
			Data: map[string]any{
				"file_key":  "0x" + hexRepeat("00", 31) + "01",
				"bucket_id": "0x" + hexRepeat("00", 32),
			},
		})
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	n, err := st.CountPendingIntents(ctx, string(types.IntentClassIncomplete))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected no dangling intent for an unassociated file, got %d", n)
	}

	assocs, err := st.FileAssociations(ctx, fileKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(assocs) != 0 {
		t.Errorf("expected no associations, got %d", len(assocs))
	}
}

// When an association does exist, handleIncompleteStorageRequest must
// produce an Incomplete intent targeting it rather than deleting anything.
func TestHandleIncompleteStorageRequestCreatesIntentPerAssociation(t *testing.T) {
	st := testsupport.NewTestStore(t)
	ctx := context.Background()
	fileKey := makeFileKeyDT(0x02)
	bucketID := makeBucketIDDT(0xAA)
	bsp := makeProviderDT(0x09)

	err := st.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.UpsertFile(types.File{
			FileKey: fileKey, Bucket: bucketID, Location: "/a/b", CreatedAtBlock: 1,
		}); err != nil {
			return err
		}
		if err := tx.CreateAssociation(types.ProviderFileAssociation{
			Provider: bsp, Kind: types.ProviderKindBSP, File: fileKey, StoredSince: time.Now(),
		}); err != nil {
			return err
		}
		return dispatch(tx, types.Event{
			Kind:        types.EventStorageRequestExpired,
			BlockHeight: 2,
			Data: map[string]any{
				"file_key":  "0x" + hexRepeat("00", 31) + "02",
				"bucket_id": "0x" + hexRepeat("00", 32),
			},
		})
	})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	intents, err := st.PendingIntents(ctx, types.IntentClassIncomplete)
	if err != nil {
		t.Fatal(err)
	}
	if len(intents) != 1 {
		t.Fatalf("expected exactly one Incomplete intent, got %d", len(intents))
	}
	if intents[0].Provider == nil || *intents[0].Provider != bsp {
		t.Errorf("expected intent targeting the confirmed BSP, got %+v", intents[0].Provider)
	}
}

func hexRepeat(pair string, n int) string {
	out := make([]byte, 0, len(pair)*n)
	for i := 0; i < n; i++ {
		out = append(out, pair...)
	}
	return string(out)
}
