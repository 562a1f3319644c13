package types

import "time"

// FileKey is the 32-byte content-addressed key of a stored file.
type FileKey [32]byte

// Fingerprint is the 32-byte Merkle root over a file's encrypted chunks.
type Fingerprint [32]byte

// BucketID is the 32-byte on-chain identifier of a bucket.
type BucketID [32]byte

// ForestRoot is the 32-byte Merkle root of a provider's forest of stored files.
type ForestRoot [32]byte

// Address is a 20-byte substrate account address (blake2-160 of a public key).
type Address [20]byte

// ProviderID is the 32-byte on-chain identifier of a storage provider.
type ProviderID [32]byte

// Block is an indexed chain block. Rows are inserted as the finality stream
// delivers them and are never deleted.
type Block struct {
	Height    uint64
	Hash      [32]byte
	Finalized bool
	IndexedAt time.Time
}

// File is a content-addressed object tracked by the event store.
type File struct {
	FileKey            FileKey
	Fingerprint        Fingerprint
	Owner              Address
	Bucket             BucketID
	Location           string
	Size               uint64
	DeletionSignature  []byte // SCALE-encoded signature, nil until a user deletion intent is recorded
	CreatedAtBlock     uint64
}

// Bucket is a logical namespace scoped to one owner and one managing provider.
type Bucket struct {
	ID         BucketID
	Name       string
	Owner      Address
	MSP        *ProviderID // nil once the bucket has lost its MSP
	ForestRoot ForestRoot
}

// ProviderKind distinguishes the two provider variants the chain recognizes.
type ProviderKind string

const (
	ProviderKindBSP ProviderKind = "bsp" // storage-node: backs up raw file content
	ProviderKindMSP ProviderKind = "msp" // managed-provider: owns bucket mappings
)

// Provider is a storage-node (BSP) or managed-provider (MSP) tracked on chain.
type Provider struct {
	ID           ProviderID
	Kind         ProviderKind
	Capabilities uint64
	ForestRoot   ForestRoot
}

// ProviderFileAssociation links a file to a provider currently storing it.
type ProviderFileAssociation struct {
	Provider    ProviderID
	Kind        ProviderKind
	File        FileKey
	StoredSince time.Time
}

// IntentClass distinguishes the two deletion-intent variants.
type IntentClass string

const (
	// IntentClassUser is a user-signed intent to delete a file they own.
	IntentClassUser IntentClass = "user"
	// IntentClassIncomplete is chain-driven: a storage request never completed.
	IntentClassIncomplete IntentClass = "incomplete"
)

// IntentStatus tracks a deletion intent through the fisherman's pipeline.
type IntentStatus string

const (
	IntentStatusPending   IntentStatus = "pending"
	IntentStatusBatched   IntentStatus = "batched"
	IntentStatusConfirmed IntentStatus = "confirmed"
	IntentStatusFailed    IntentStatus = "failed"
)

// DeletionIntent is a pending or in-flight deletion targeting one
// (provider, file) pair, or a bucket-wide removal when Provider is nil.
type DeletionIntent struct {
	ID         int64
	Class      IntentClass
	File       FileKey
	Bucket     BucketID
	Provider   *ProviderID // nil for a bucket-only removal
	Kind       ProviderKind
	Status     IntentStatus
	CreatedAtBlock uint64
	UpdatedAt  time.Time
}

// EventKind enumerates the on-chain event taxonomy the indexer dispatches on.
type EventKind string

const (
	EventNewBucket                      EventKind = "NewBucket"
	EventBucketDeleted                  EventKind = "BucketDeleted"
	EventMoveBucketAccepted             EventKind = "MoveBucketAccepted"
	EventMspStoppedStoringBucket        EventKind = "MspStoppedStoringBucket"
	EventNewStorageRequest              EventKind = "NewStorageRequest"
	EventMspAcceptedStorageRequest      EventKind = "MspAcceptedStorageRequest"
	EventBspConfirmedStoring            EventKind = "BspConfirmedStoring"
	EventStorageRequestFulfilled        EventKind = "StorageRequestFulfilled"
	EventStorageRequestRevoked          EventKind = "StorageRequestRevoked"
	EventStorageRequestExpired          EventKind = "StorageRequestExpired"
	EventStorageRequestRejected         EventKind = "StorageRequestRejected"
	EventIncompleteStorageRequest       EventKind = "IncompleteStorageRequest"
	EventFileDeletionRequested          EventKind = "FileDeletionRequested"
	EventBspRequestedToStopStoring      EventKind = "BspRequestedToStopStoring"
	EventBspConfirmStoppedStoring       EventKind = "BspConfirmStoppedStoring"
	EventSpStopStoringInsolventUser     EventKind = "SpStopStoringInsolventUser"
	EventBspFileDeletionsCompleted      EventKind = "BspFileDeletionsCompleted"
	EventBucketFileDeletionsCompleted   EventKind = "BucketFileDeletionsCompleted"
)

// Event is a single decoded chain event belonging to a finalized block,
// handed from the chain RPC client to the indexer in block order.
type Event struct {
	BlockHeight uint64
	Index       uint32 // position within the block, used for the unique (height, index) key
	Kind        EventKind
	Data        map[string]any // decoded SCALE fields, keyed by field name
}
