package sdk

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeFingerprintIsDeterministic(t *testing.T) {
	content := strings.Repeat("the quick brown fox ", 1000)

	a, err := ComputeFingerprint(strings.NewReader(content), 64)
	assert.NoError(t, err)
	b, err := ComputeFingerprint(strings.NewReader(content), 64)
	assert.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestComputeFingerprintChangesWithContent(t *testing.T) {
	a, err := ComputeFingerprint(strings.NewReader("hello world"), 64)
	assert.NoError(t, err)
	b, err := ComputeFingerprint(strings.NewReader("hello worlds"), 64)
	assert.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestComputeFingerprintChangesWithChunking(t *testing.T) {
	content := strings.Repeat("abcdefgh", 50)
	a, err := ComputeFingerprint(strings.NewReader(content), 16)
	assert.NoError(t, err)
	b, err := ComputeFingerprint(strings.NewReader(content), 32)
	assert.NoError(t, err)

	assert.NotEqual(t, a, b, "different chunk boundaries produce different Merkle trees over the same bytes")
}

func TestComputeFingerprintHandlesEmptyInput(t *testing.T) {
	fp, err := ComputeFingerprint(bytes.NewReader(nil), 64)
	assert.NoError(t, err)
	assert.NotZero(t, fp)
}

func TestComputeFingerprintSingleChunk(t *testing.T) {
	fp, err := ComputeFingerprint(strings.NewReader("short"), 4096)
	assert.NoError(t, err)
	assert.NotZero(t, fp)
}
