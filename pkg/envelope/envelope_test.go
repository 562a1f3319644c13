package envelope

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
		chunkSize uint32
	}{
		{"empty", []byte{}, 16},
		{"smaller than one chunk", []byte("hello world"), 64},
		{"exact multiple of chunk size", bytes.Repeat([]byte("a"), 32), 16},
		{"several chunks with a short tail", bytes.Repeat([]byte("xyz123"), 100), 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ikm, err := DeriveIKMFromPassword("correct horse battery staple")
			assert.NoError(t, err)

			var encrypted bytes.Buffer
			err = Encrypt(&encrypted, bytes.NewReader(tt.plaintext), ikm, EncryptOptions{ChunkSize: tt.chunkSize})
			assert.NoError(t, err)

			var decrypted bytes.Buffer
			err = Decrypt(&decrypted, bytes.NewReader(encrypted.Bytes()), ikm)
			assert.NoError(t, err)

			assert.Equal(t, string(tt.plaintext), decrypted.String())
		})
	}
}

func TestEncryptIsDeterministicForFixedSalt(t *testing.T) {
	ikm, _ := DeriveIKMFromPassword("correct horse battery staple")
	salt := bytes.Repeat([]byte{0x42}, saltSize)
	plaintext := []byte("deterministic please")

	var first, second bytes.Buffer
	assert.NoError(t, Encrypt(&first, bytes.NewReader(plaintext), ikm, EncryptOptions{ChunkSize: 8, Salt: salt}))
	assert.NoError(t, Encrypt(&second, bytes.NewReader(plaintext), ikm, EncryptOptions{ChunkSize: 8, Salt: salt}))

	assert.Equal(t, first.Bytes(), second.Bytes(), "same IKM and salt must reproduce the same envelope bytes")
}

func TestChunkNonceDistinctAcrossIndices(t *testing.T) {
	var base [nonceSize]byte
	for i := range base {
		base[i] = byte(i + 1)
	}

	seen := make(map[[nonceSize]byte]uint64)
	for i := uint64(0); i < 1000; i++ {
		n := chunkNonce(base, i)
		if prior, ok := seen[n]; ok {
			t.Fatalf("nonce collision between index %d and %d", prior, i)
		}
		seen[n] = i
	}
}

func TestChunkNonceZeroIsBaseNonce(t *testing.T) {
	var base [nonceSize]byte
	for i := range base {
		base[i] = byte(0xAA)
	}
	assert.Equal(t, base, chunkNonce(base, 0))
}

func TestDecryptRejectsTamperedChunk(t *testing.T) {
	ikm, _ := DeriveIKMFromPassword("correct horse battery staple")
	var encrypted bytes.Buffer
	assert.NoError(t, Encrypt(&encrypted, bytes.NewReader([]byte("tamper with me")), ikm, EncryptOptions{ChunkSize: 4}))

	tampered := encrypted.Bytes()
	tampered[len(tampered)-1] ^= 0xFF

	var decrypted bytes.Buffer
	err := Decrypt(&decrypted, bytes.NewReader(tampered), ikm)
	assert.Error(t, err)
}

func TestDecryptRejectsWrongIKM(t *testing.T) {
	ikm, _ := DeriveIKMFromPassword("correct horse battery staple")
	wrongIKM, _ := DeriveIKMFromPassword("a different passphrase entirely")

	var encrypted bytes.Buffer
	assert.NoError(t, Encrypt(&encrypted, bytes.NewReader([]byte("secret")), ikm, EncryptOptions{ChunkSize: 4}))

	var decrypted bytes.Buffer
	err := Decrypt(&decrypted, bytes.NewReader(encrypted.Bytes()), wrongIKM)
	assert.Error(t, err)
}

func TestDeriveIKMFromPasswordRejectsShortPassword(t *testing.T) {
	_, err := DeriveIKMFromPassword("short")
	assert.Error(t, err)
}

func TestDeriveIKMFromSignatureRejectsShortSignature(t *testing.T) {
	_, err := DeriveIKMFromSignature([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestReadEncryptionHeaderParsesFromPrefix(t *testing.T) {
	ikm, _ := DeriveIKMFromPassword("correct horse battery staple")
	var encrypted bytes.Buffer
	err := Encrypt(&encrypted, bytes.NewReader([]byte("hello")), ikm, EncryptOptions{
		ChunkSize: 8,
		Challenge: bytes.Repeat([]byte{0x07}, challengeSize),
	})
	assert.NoError(t, err)

	full := encrypted.Bytes()
	prefixLen := len(full)
	if prefixLen > 80 {
		prefixLen = 80
	}
	h, err := ReadEncryptionHeader(full[:prefixLen])
	assert.NoError(t, err)
	assert.True(t, h.HasChallenge)
	assert.EqualValues(t, 8, h.ChunkSize)
}

func TestReadEncryptionHeaderRejectsBadMagic(t *testing.T) {
	_, err := ReadEncryptionHeader(bytes.Repeat([]byte{0}, 64))
	assert.Error(t, err)
}

func TestReadEncryptionHeaderRejectsMissingChallenge(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(version)
	buf.WriteByte(flagHasChallenge)
	buf.WriteByte(ikmKindPassword)
	buf.Write(make([]byte, saltSize))
	buf.Write([]byte{0, 0, 0, 16}) // chunk_size, no challenge bytes follow

	_, err := ReadEncryptionHeader(buf.Bytes())
	assert.Error(t, err)
}

func TestBindingMessageVariesWithEachField(t *testing.T) {
	base := BindingMessage("fisherman-sdk", "storage-hub", 1, "delete", "chain-1", []byte{0x01}, []byte{0x02})
	changedAddress := BindingMessage("fisherman-sdk", "storage-hub", 1, "delete", "chain-1", []byte{0x99}, []byte{0x02})
	changedChain := BindingMessage("fisherman-sdk", "storage-hub", 1, "delete", "chain-1-testnet", []byte{0x01}, []byte{0x02})

	assert.NotEqual(t, base, changedAddress)
	assert.NotEqual(t, base, changedChain)
}
