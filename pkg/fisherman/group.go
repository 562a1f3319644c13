package fisherman

import "github.com/moonsong-labs/fisherman/pkg/types"

// target identifies the single BSP or bucket-MSP a batch of deletions is
// submitted against in one tick. Kind selects which on-chain call shape
// applies (deleteFiles target=BSP vs target=bucket).
type target struct {
	Kind     types.ProviderKind
	Provider types.ProviderID // the BSP, or the bucket's managing MSP
	Bucket   types.BucketID   // only meaningful when Kind == ProviderKindMSP
}

// group is one target's batch: every file key destined for it, plus the
// per-file user signature when the batch is serving a User-class intent
// (Signatures stays empty for Incomplete-class batches, which carry none).
type group struct {
	Target     target
	Class      types.IntentClass
	Intents    []types.DeletionIntent
	FileKeys   []types.FileKey
	Signatures [][]byte
}

// groupByTarget implements the §4.2 grouping rule: User intents group by
// (BSP) or (bucket-MSP); Incomplete intents group the same way. A single
// tick therefore produces at most one group per distinct target, which
// runGroups turns into at most S+B extrinsics.
func groupByTarget(intents []types.DeletionIntent, signatureOf func(types.FileKey) []byte) []group {
	index := make(map[target]*group)
	var order []target

	for _, di := range intents {
		if di.Provider == nil {
			continue // bucket-reservation-only intents have no dispatchable target yet
		}
		t := target{Kind: di.Kind, Provider: *di.Provider, Bucket: di.Bucket}
		g, ok := index[t]
		if !ok {
			g = &group{Target: t, Class: di.Class}
			index[t] = g
			order = append(order, t)
		}
		g.Intents = append(g.Intents, di)
		g.FileKeys = append(g.FileKeys, di.File)
		if di.Class == types.IntentClassUser && signatureOf != nil {
			g.Signatures = append(g.Signatures, signatureOf(di.File))
		}
	}

	out := make([]group, 0, len(order))
	for _, t := range order {
		out = append(out, *index[t])
	}
	return out
}
