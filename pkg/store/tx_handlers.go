package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/moonsong-labs/fisherman/pkg/ferr"
	"github.com/moonsong-labs/fisherman/pkg/types"
)

// InsertBlock records a newly finalized block. Called once per block before
// its events are applied.
func (t *Tx) InsertBlock(b types.Block) error {
	_, err := t.exec(
		`INSERT INTO block (height, hash, finalized, indexed_at) VALUES (?, ?, ?, ?)`,
		b.Height, b.Hash[:], b.Finalized, b.IndexedAt,
	)
	return wrap("store.InsertBlock", err)
}

// AlreadyApplied reports whether (height, index) has already been applied,
// making event application idempotent across crash/restart replay.
func (t *Tx) AlreadyApplied(height uint64, index uint32) (bool, error) {
	var one int
	err := t.queryRow(
		`SELECT 1 FROM applied_event WHERE block_height = ? AND event_index = ?`, height, index,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, wrap("store.AlreadyApplied", err)
	}
	return true, nil
}

// MarkApplied records that (height, index) has been applied, inside the
// same transaction as the mutation it authorizes.
func (t *Tx) MarkApplied(height uint64, index uint32) error {
	_, err := t.exec(`INSERT INTO applied_event (block_height, event_index) VALUES (?, ?)`, height, index)
	return wrap("store.MarkApplied", err)
}

// SetLastIndexedBlock advances service_state.last_indexed_block. Called in
// the same transaction as the block's event mutations, so a crash between
// them cannot leave the store ahead of what it has actually applied.
func (t *Tx) SetLastIndexedBlock(height uint64) error {
	_, err := t.exec(`UPDATE service_state SET last_indexed_block = ? WHERE id = 1`, height)
	return wrap("store.SetLastIndexedBlock", err)
}

// UpsertBucket creates or replaces a bucket row (NewBucket, MoveBucketAccepted).
func (t *Tx) UpsertBucket(b types.Bucket) error {
	var mspID []byte
	if b.MSP != nil {
		mspID = b.MSP[:]
	}
	_, err := t.exec(
		`INSERT INTO bucket (id, name, owner, msp_id, forest_root) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, owner = excluded.owner,
		   msp_id = excluded.msp_id, forest_root = excluded.forest_root`,
		b.ID[:], b.Name, b.Owner[:], mspID, b.ForestRoot[:],
	)
	return wrap("store.UpsertBucket", err)
}

// SetBucketDeleted marks a bucket deleted and cascades its associations away.
func (t *Tx) SetBucketDeleted(id types.BucketID) error {
	if _, err := t.exec(`UPDATE bucket SET deleted_at = ? WHERE id = ?`, time.Now(), id[:]); err != nil {
		return wrap("store.SetBucketDeleted", err)
	}
	if _, err := t.exec(`DELETE FROM msp_file WHERE file_key IN (SELECT file_key FROM file WHERE bucket_id = ?)`, id[:]); err != nil {
		return wrap("store.SetBucketDeleted", err)
	}
	return nil
}

// ClearBucketMSP nulls a bucket's managing provider (MspStoppedStoringBucket).
func (t *Tx) ClearBucketMSP(id types.BucketID) error {
	_, err := t.exec(`UPDATE bucket SET msp_id = NULL WHERE id = ?`, id[:])
	return wrap("store.ClearBucketMSP", err)
}

// UpsertFile creates or replaces a file row (NewStorageRequest).
func (t *Tx) UpsertFile(f types.File) error {
	_, err := t.exec(
		`INSERT INTO file (file_key, fingerprint, owner, bucket_id, location, size, created_at_block)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (file_key) DO UPDATE SET fingerprint = excluded.fingerprint,
		   owner = excluded.owner, bucket_id = excluded.bucket_id,
		   location = excluded.location, size = excluded.size`,
		f.FileKey[:], f.Fingerprint[:], f.Owner[:], f.Bucket[:], f.Location, f.Size, f.CreatedAtBlock,
	)
	return wrap("store.UpsertFile", err)
}

// MarkFileFulfilled flips a file's fulfilled flag (StorageRequestFulfilled).
func (t *Tx) MarkFileFulfilled(key types.FileKey) error {
	_, err := t.exec(`UPDATE file SET fulfilled = 1 WHERE file_key = ?`, key[:])
	return wrap("store.MarkFileFulfilled", err)
}

// SetDeletionSignature persists the SCALE-encoded user deletion signature.
// The caller must check I2 (at most one signature per file) before calling.
func (t *Tx) SetDeletionSignature(key types.FileKey, sig []byte) error {
	_, err := t.exec(`UPDATE file SET deletion_signature = ? WHERE file_key = ?`, sig, key[:])
	return wrap("store.SetDeletionSignature", err)
}

// HasDeletionSignature reports whether a file already carries I2's unique
// user signature.
func (t *Tx) HasDeletionSignature(key types.FileKey) (bool, error) {
	var sig []byte
	err := t.queryRow(`SELECT deletion_signature FROM file WHERE file_key = ?`, key[:]).Scan(&sig)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, wrap("store.HasDeletionSignature", err)
	}
	return sig != nil, nil
}

// CreateAssociation records that provider is now storing file
// (MspAcceptedStorageRequest, BspConfirmedStoring).
func (t *Tx) CreateAssociation(a types.ProviderFileAssociation) error {
	table := assocTable(a.Kind)
	_, err := t.exec(
		fmt.Sprintf(`INSERT INTO %s (provider_id, file_key, stored_since) VALUES (?, ?, ?)
		             ON CONFLICT (provider_id, file_key) DO NOTHING`, table),
		a.Provider[:], a.File[:], a.StoredSince,
	)
	return wrap("store.CreateAssociation", err)
}

// RemoveAssociation deletes a single (provider, file) association
// (BspConfirmStoppedStoring and as part of batched-deletion completion).
func (t *Tx) RemoveAssociation(kind types.ProviderKind, provider types.ProviderID, file types.FileKey) error {
	table := assocTable(kind)
	_, err := t.exec(fmt.Sprintf(`DELETE FROM %s WHERE provider_id = ? AND file_key = ?`, table), provider[:], file[:])
	return wrap("store.RemoveAssociation", err)
}

// RemoveAllBSPAssociationsForOwner handles SpStopStoringInsolventUser: every
// BSP association for files owned by owner is dropped.
func (t *Tx) RemoveAllBSPAssociationsForOwner(owner types.Address) error {
	_, err := t.exec(
		`DELETE FROM bsp_file WHERE file_key IN (SELECT file_key FROM file WHERE owner = ?)`, owner[:],
	)
	return wrap("store.RemoveAllBSPAssociationsForOwner", err)
}

// RemainingAssociationCount returns how many (any-kind) associations still
// reference file, used to decide whether its row can be deleted.
func (t *Tx) RemainingAssociationCount(file types.FileKey) (int, error) {
	var n int
	err := t.queryRow(
		`SELECT (SELECT COUNT(*) FROM bsp_file WHERE file_key = ?) +
		        (SELECT COUNT(*) FROM msp_file WHERE file_key = ?)`,
		file[:], file[:],
	).Scan(&n)
	return n, wrap("store.RemainingAssociationCount", err)
}

// RemainingPendingIntentCount returns how many pending intents still
// reference file.
func (t *Tx) RemainingPendingIntentCount(file types.FileKey) (int, error) {
	var n int
	err := t.queryRow(
		`SELECT COUNT(*) FROM deletion_intent WHERE file_key = ? AND status = 'pending'`, file[:],
	).Scan(&n)
	return n, wrap("store.RemainingPendingIntentCount", err)
}

// DeleteFile removes a file row once no associations or pending intents
// reference it.
func (t *Tx) DeleteFile(key types.FileKey) error {
	_, err := t.exec(`DELETE FROM file WHERE file_key = ?`, key[:])
	return wrap("store.DeleteFile", err)
}

// CreateIntent records a new deletion intent (User or Incomplete class).
// provider is nil for a bucket-only removal.
func (t *Tx) CreateIntent(di types.DeletionIntent) error {
	var providerID []byte
	if di.Provider != nil {
		providerID = di.Provider[:]
	}
	_, err := t.exec(
		`INSERT INTO deletion_intent (class, file_key, bucket_id, provider_id, provider_kind, status, created_at_block)
		 VALUES (?, ?, ?, ?, ?, 'pending', ?)`,
		string(di.Class), di.File[:], di.Bucket[:], providerID, string(di.Kind), di.CreatedAtBlock,
	)
	return wrap("store.CreateIntent", err)
}

// SetIntentStatus transitions an intent's status (pending -> batched ->
// confirmed/failed). The Fisherman is the sole caller.
func (t *Tx) SetIntentStatus(id int64, status types.IntentStatus) error {
	_, err := t.exec(`UPDATE deletion_intent SET status = ?, updated_at = ? WHERE id = ?`, string(status), time.Now(), id)
	return wrap("store.SetIntentStatus", err)
}

// DeleteIntent removes an intent once its target association has also been
// removed, atomically from the caller's point of view (both calls happen
// inside the same Tx).
func (t *Tx) DeleteIntent(id int64) error {
	_, err := t.exec(`DELETE FROM deletion_intent WHERE id = ?`, id)
	return wrap("store.DeleteIntent", err)
}

// UpsertProviderForestRoot records a provider's current forest root,
// learned either from chain query or from a completion event.
func (t *Tx) UpsertProviderForestRoot(kind types.ProviderKind, id types.ProviderID, root types.ForestRoot) error {
	table := "bsp"
	if kind == types.ProviderKindMSP {
		table = "msp"
	}
	_, err := t.exec(
		fmt.Sprintf(`INSERT INTO %s (id, forest_root) VALUES (?, ?)
		             ON CONFLICT (id) DO UPDATE SET forest_root = excluded.forest_root`, table),
		id[:], root[:],
	)
	return wrap("store.UpsertProviderForestRoot", err)
}

// DeleteIntentsForCompletion removes every intent that a deletions-
// completed event for (kind, provider, file) satisfies, including a
// bucket-only reservation intent recorded with a nil provider (matched via
// provider_id IS NULL here since kind is still known at that point).
func (t *Tx) DeleteIntentsForCompletion(file types.FileKey, kind types.ProviderKind, provider types.ProviderID) error {
	_, err := t.exec(
		`DELETE FROM deletion_intent
		  WHERE file_key = ? AND provider_kind = ? AND (provider_id = ? OR provider_id IS NULL)`,
		file[:], string(kind), provider[:],
	)
	return wrap("store.DeleteIntentsForCompletion", err)
}

// AssociationsForFile returns every provider currently storing file, read
// inside the caller's transaction so a handler sees its own prior writes.
func (t *Tx) AssociationsForFile(file types.FileKey) ([]types.ProviderFileAssociation, error) {
	var out []types.ProviderFileAssociation
	for _, table := range []struct {
		name string
		kind types.ProviderKind
	}{
		{"bsp_file", types.ProviderKindBSP},
		{"msp_file", types.ProviderKindMSP},
	} {
		rows, err := t.query(
			fmt.Sprintf(`SELECT provider_id, stored_since FROM %s WHERE file_key = ?`, table.name), file[:],
		)
		if err != nil {
			return nil, wrap("store.AssociationsForFile", err)
		}
		for rows.Next() {
			var providerID []byte
			var assoc types.ProviderFileAssociation
			if err := rows.Scan(&providerID, &assoc.StoredSince); err != nil {
				rows.Close()
				return nil, wrap("store.AssociationsForFile", err)
			}
			copy(assoc.Provider[:], providerID)
			assoc.Kind = table.kind
			assoc.File = file
			out = append(out, assoc)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, wrap("store.AssociationsForFile", err)
		}
		rows.Close()
	}
	return out, nil
}

func assocTable(kind types.ProviderKind) string {
	if kind == types.ProviderKindMSP {
		return "msp_file"
	}
	return "bsp_file"
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return ferr.New(ferr.Transient, op, err)
}
