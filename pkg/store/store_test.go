package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/moonsong-labs/fisherman/pkg/types"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "fisherman.db")
	st, err := New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestLastIndexedBlockStartsAtZero(t *testing.T) {
	st := newTestStore(t)
	height, err := st.LastIndexedBlock(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if height != 0 {
		t.Errorf("expected 0, got %d", height)
	}
}

func TestWithTxCommitsAdvancesLastIndexedBlock(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertBlock(types.Block{Height: 1, Finalized: true, IndexedAt: time.Now()}); err != nil {
			return err
		}
		return tx.SetLastIndexedBlock(1)
	})
	if err != nil {
		t.Fatal(err)
	}

	height, err := st.LastIndexedBlock(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if height != 1 {
		t.Errorf("expected 1, got %d", height)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sentinel := &testError{"boom"}
	err := st.WithTx(ctx, func(tx *Tx) error {
		if err := tx.SetLastIndexedBlock(99); err != nil {
			return err
		}
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	height, err := st.LastIndexedBlock(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if height != 0 {
		t.Errorf("expected rollback to leave height at 0, got %d", height)
	}
}

func TestEventIdempotence(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	apply := func() error {
		return st.WithTx(ctx, func(tx *Tx) error {
			applied, err := tx.AlreadyApplied(5, 0)
			if err != nil {
				return err
			}
			if applied {
				return nil
			}
			if err := tx.MarkApplied(5, 0); err != nil {
				return err
			}
			return tx.SetLastIndexedBlock(5)
		})
	}

	if err := apply(); err != nil {
		t.Fatal(err)
	}
	if err := apply(); err != nil {
		t.Fatalf("replaying an applied event should be a no-op, got: %v", err)
	}
}

func TestBucketLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var bucketID types.BucketID
	bucketID[0] = 0xAA
	var msp types.ProviderID
	msp[0] = 0xBB

	err := st.WithTx(ctx, func(tx *Tx) error {
		return tx.UpsertBucket(types.Bucket{ID: bucketID, Name: "b0", MSP: &msp})
	})
	if err != nil {
		t.Fatal(err)
	}

	err = st.WithTx(ctx, func(tx *Tx) error {
		return tx.ClearBucketMSP(bucketID)
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCountPendingIntents(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var fileKey types.FileKey
	fileKey[0] = 1
	var bucketID types.BucketID
	var provider types.ProviderID

	err := st.WithTx(ctx, func(tx *Tx) error {
		return tx.CreateIntent(types.DeletionIntent{
			Class:    types.IntentClassUser,
			File:     fileKey,
			Bucket:   bucketID,
			Provider: &provider,
			Kind:     types.ProviderKindBSP,
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := st.CountPendingIntents(ctx, string(types.IntentClassUser))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 pending intent, got %d", n)
	}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestRewritePlaceholdersLeavesSqliteUnchanged(t *testing.T) {
	q := `SELECT * FROM file WHERE file_key = ? AND bucket_id = ?`
	if got := rewritePlaceholders(q, "sqlite3"); got != q {
		t.Errorf("expected sqlite query unchanged, got %q", got)
	}
}

func TestRewritePlaceholdersNumbersForPostgres(t *testing.T) {
	q := `SELECT * FROM file WHERE file_key = ? AND bucket_id = ?`
	want := `SELECT * FROM file WHERE file_key = $1 AND bucket_id = $2`
	if got := rewritePlaceholders(q, "postgres"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRewritePlaceholdersHandlesRepeatedParamUsage(t *testing.T) {
	q := `SELECT forest_root FROM bsp WHERE id = ? UNION ALL SELECT forest_root FROM msp WHERE id = ?`
	want := `SELECT forest_root FROM bsp WHERE id = $1 UNION ALL SELECT forest_root FROM msp WHERE id = $2`
	if got := rewritePlaceholders(q, "postgres"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
