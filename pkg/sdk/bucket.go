package sdk

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/moonsong-labs/fisherman/pkg/ferr"
	"github.com/moonsong-labs/fisherman/pkg/types"
)

// bucketRPC is the subset of chainrpc.Client the SDK's bucket lookups need;
// modeled as an interface so callers can substitute a fake in tests.
type bucketRPC interface {
	BucketInfo(ctx context.Context, bucket types.BucketID) (map[string]any, error)
}

// LookupBucket resolves id's current owner and managing MSP, the
// information a storage or deletion request needs before it can name a
// target provider.
func LookupBucket(ctx context.Context, rpc bucketRPC, id types.BucketID) (types.Bucket, error) {
	raw, err := rpc.BucketInfo(ctx, id)
	if err != nil {
		return types.Bucket{}, err
	}

	b := types.Bucket{ID: id}
	if name, ok := raw["name"].(string); ok {
		b.Name = name
	}
	if owner, ok := decodeHexField(raw["owner"]); ok && len(owner) == 20 {
		copy(b.Owner[:], owner)
	}
	if msp, ok := decodeHexField(raw["msp_id"]); ok && len(msp) == 32 {
		var p types.ProviderID
		copy(p[:], msp)
		b.MSP = &p
	}
	if root, ok := decodeHexField(raw["forest_root"]); ok && len(root) == 32 {
		copy(b.ForestRoot[:], root)
	}
	return b, nil
}

func decodeHexField(v any) ([]byte, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, false
	}
	return b, true
}

// RequireMSP returns b's managing MSP or an InvalidInput error if the
// bucket currently has none — the state a deletion request against an
// MSP target cannot proceed from.
func RequireMSP(b types.Bucket) (types.ProviderID, error) {
	if b.MSP == nil {
		return types.ProviderID{}, ferr.Invalid("sdk.RequireMSP", "bucket %x has no managing MSP", b.ID)
	}
	return *b.MSP, nil
}
