/*
Package types defines the core data structures shared across the fisherman's
packages: the chain entities tracked by the event store, the on-chain event
taxonomy the indexer dispatches on, and the deletion-intent lifecycle the
fisherman scheduler drives to completion.

# Core Types

Chain-tracked entities:
  - Block: a finalized chain block, identified by height and hash
  - File: a content-addressed object, keyed by a 32-byte FileKey
  - Bucket: a namespace scoped to one owner and (optionally) one MSP
  - Provider: a BSP (storage-node) or MSP (managed-provider)
  - ProviderFileAssociation: a (provider, file) storage relationship

Deletion pipeline:
  - DeletionIntent: a pending or in-flight deletion, User- or Incomplete-class
  - IntentStatus: pending, batched, confirmed, or failed
  - EventKind: the closed set of on-chain events the indexer handles

Fixed-width identifiers ([32]byte, [20]byte) are compared byte-wise rather
than as hex strings, so map keys and equality checks avoid an encode/decode
round trip on the hot path.

# Ownership

The event store is process-wide shared state. The indexer is the sole
writer of Block rows and of File/Bucket/Provider/ProviderFileAssociation
rows derived from chain events. The fisherman scheduler is the sole writer
of DeletionIntent status transitions. Client SDK callers never write to the
store directly — they submit extrinsics that re-enter the system through
the indexer once finalized.
*/
package types
