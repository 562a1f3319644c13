package fisherman

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moonsong-labs/fisherman/pkg/types"
)

func makeProvider(b byte) types.ProviderID {
	var p types.ProviderID
	p[0] = b
	return p
}

func makeFileKey(b byte) types.FileKey {
	var f types.FileKey
	f[0] = b
	return f
}

func TestGroupByTargetBatchesPerProvider(t *testing.T) {
	bsp1 := makeProvider(1)
	bsp2 := makeProvider(2)

	intents := []types.DeletionIntent{
		{Class: types.IntentClassUser, File: makeFileKey(1), Kind: types.ProviderKindBSP, Provider: &bsp1},
		{Class: types.IntentClassUser, File: makeFileKey(2), Kind: types.ProviderKindBSP, Provider: &bsp1},
		{Class: types.IntentClassUser, File: makeFileKey(3), Kind: types.ProviderKindBSP, Provider: &bsp2},
	}

	groups := groupByTarget(intents, nil)
	assert.Len(t, groups, 2, "expected one group per distinct BSP target")

	byProvider := make(map[types.ProviderID]group)
	for _, g := range groups {
		byProvider[g.Target.Provider] = g
	}
	assert.Len(t, byProvider[bsp1].FileKeys, 2)
	assert.Len(t, byProvider[bsp2].FileKeys, 1)
}

func TestGroupByTargetBucketGroupsSeparatelyFromBSP(t *testing.T) {
	bsp := makeProvider(1)
	msp := makeProvider(9)
	var bucketID types.BucketID
	bucketID[0] = 0xAA

	intents := []types.DeletionIntent{
		{Class: types.IntentClassUser, File: makeFileKey(1), Kind: types.ProviderKindBSP, Provider: &bsp},
		{Class: types.IntentClassUser, File: makeFileKey(1), Bucket: bucketID, Kind: types.ProviderKindMSP, Provider: &msp},
	}

	groups := groupByTarget(intents, nil)
	assert.Len(t, groups, 2, "a file pending against both a BSP and its bucket's MSP produces two extrinsics, not one")
}

func TestGroupByTargetSkipsBucketOnlyReservations(t *testing.T) {
	var bucketID types.BucketID
	intents := []types.DeletionIntent{
		{Class: types.IntentClassIncomplete, File: makeFileKey(1), Bucket: bucketID, Kind: types.ProviderKindMSP, Provider: nil},
	}

	groups := groupByTarget(intents, nil)
	assert.Empty(t, groups, "an intent with no resolved provider target has nothing to dispatch yet")
}

func TestGroupByTargetAttachesSignaturesOnlyForUserClass(t *testing.T) {
	bsp := makeProvider(1)
	intents := []types.DeletionIntent{
		{Class: types.IntentClassUser, File: makeFileKey(1), Kind: types.ProviderKindBSP, Provider: &bsp},
		{Class: types.IntentClassIncomplete, File: makeFileKey(2), Kind: types.ProviderKindBSP, Provider: &bsp},
	}

	sigLookups := 0
	groups := groupByTarget(intents, func(types.FileKey) []byte {
		sigLookups++
		return []byte("sig")
	})

	assert.Len(t, groups, 1, "same BSP target batches both intents into one group regardless of class")
	assert.Equal(t, 1, sigLookups, "signature lookup only happens for the User-class file in the batch")
}
