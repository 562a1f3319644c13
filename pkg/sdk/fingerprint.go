// Package sdk is the client-side counterpart to the chain-watching
// fisherman: it computes file fingerprints, looks up bucket state over the
// same chain RPC surface, and builds the signed intention that drives a
// deletion request. It has no builder for storage requests.
package sdk

import (
	"crypto/sha256"
	"io"

	"github.com/moonsong-labs/fisherman/pkg/ferr"
	"github.com/moonsong-labs/fisherman/pkg/types"
)

// DefaultFingerprintChunkSize is the chunking granularity ComputeFingerprint
// uses when the caller does not override it; it matches envelope.DefaultChunkSize
// so a file's fingerprint is computed over the same chunk boundaries its
// envelope form uses.
const DefaultFingerprintChunkSize = 4 << 20

// ComputeFingerprint reads r in chunkSize-byte pieces and returns the
// Merkle root over their hashes: a file's fingerprint changes if and only
// if its content does, and two clients chunking the same bytes the same
// way always agree on the result.
func ComputeFingerprint(r io.Reader, chunkSize uint32) (types.Fingerprint, error) {
	if chunkSize == 0 {
		chunkSize = DefaultFingerprintChunkSize
	}

	var leaves [][32]byte
	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			leaves = append(leaves, sha256.Sum256(buf[:n]))
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return types.Fingerprint{}, ferr.New(ferr.Transient, "sdk.ComputeFingerprint", err)
		}
	}

	if len(leaves) == 0 {
		// An empty file still has a well-defined fingerprint: the hash of
		// the empty chunk, treated as a single-leaf tree.
		leaves = [][32]byte{sha256.Sum256(nil)}
	}

	return types.Fingerprint(merkleRoot(leaves)), nil
}

// merkleRoot folds leaves pairwise (sha256(left||right)) until one hash
// remains, duplicating the final node at each level when the count is odd
// — the standard unbalanced-tree construction.
func merkleRoot(level [][32]byte) [32]byte {
	for len(level) > 1 {
		var next [][32]byte
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, hashPair(level[i], level[i]))
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		level = next
	}
	return level[0]
}

func hashPair(left, right [32]byte) [32]byte {
	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
