package sdk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moonsong-labs/fisherman/pkg/types"
)

type fakeBucketRPC struct {
	response map[string]any
	err      error
}

func (f *fakeBucketRPC) BucketInfo(ctx context.Context, bucket types.BucketID) (map[string]any, error) {
	return f.response, f.err
}

func TestLookupBucketDecodesHexFields(t *testing.T) {
	rpc := &fakeBucketRPC{response: map[string]any{
		"name":    "my-bucket",
		"owner":   "0x" + repeatHex("11", 20),
		"msp_id":  "0x" + repeatHex("22", 32),
		"forest_root": "0x" + repeatHex("33", 32),
	}}

	var id types.BucketID
	id[0] = 0x01

	b, err := LookupBucket(context.Background(), rpc, id)
	assert.NoError(t, err)
	assert.Equal(t, "my-bucket", b.Name)
	assert.Equal(t, id, b.ID)
	assert.NotNil(t, b.MSP)
	assert.Equal(t, byte(0x22), b.MSP[0])
	assert.Equal(t, byte(0x11), b.Owner[0])
	assert.Equal(t, byte(0x33), b.ForestRoot[0])
}

func TestLookupBucketWithNoMSP(t *testing.T) {
	rpc := &fakeBucketRPC{response: map[string]any{"name": "orphaned"}}

	b, err := LookupBucket(context.Background(), rpc, types.BucketID{})
	assert.NoError(t, err)
	assert.Nil(t, b.MSP)

	_, err = RequireMSP(b)
	assert.Error(t, err)
}

func repeatHex(pair string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += pair
	}
	return out
}
