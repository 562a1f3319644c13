// Package envelope implements the chunked authenticated-encryption file
// format clients use to store and retrieve file contents: deterministic key
// derivation from either a passphrase or a wallet signature, a fixed binary
// header, and a ChaCha20-Poly1305 AEAD stream keyed per chunk.
package envelope

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/moonsong-labs/fisherman/pkg/ferr"
)

const (
	magic   = "FSHM"
	version = 1

	flagHasChallenge = 1 << 0

	ikmKindPassword  = 0
	ikmKindSignature = 1

	saltSize      = 32
	challengeSize = 32
	nonceSize     = chacha20poly1305.NonceSize // 12
	keySize       = chacha20poly1305.KeySize   // 32

	minPasswordLength = 12

	// DefaultChunkSize is used by Encrypt when the caller does not override it.
	DefaultChunkSize = 4 << 20
)

// Header is the fixed-format preamble of an envelope stream.
type Header struct {
	HasChallenge bool
	IKMKind      byte
	Salt         [saltSize]byte
	ChunkSize    uint32
	Challenge    [challengeSize]byte
}

// DeriveIKMFromPassword validates and returns passphrase as input key
// material. Passphrases shorter than minPasswordLength are rejected.
func DeriveIKMFromPassword(passphrase string) ([]byte, error) {
	if len(passphrase) < minPasswordLength {
		return nil, ferr.Invalid("envelope.DeriveIKMFromPassword", "passphrase must be at least %d characters", minPasswordLength)
	}
	return []byte(passphrase), nil
}

// DeriveIKMFromSignature validates and returns sig as input key material. A
// wallet signature over BindingMessage is expected; sr25519/ed25519/ECDSA
// signatures are all fixed-length byte strings, so only non-emptiness and a
// minimum plausible length are enforced here — the signature's validity
// against the signer's public key is the caller's responsibility.
func DeriveIKMFromSignature(sig []byte) ([]byte, error) {
	if len(sig) < 64 {
		return nil, ferr.Invalid("envelope.DeriveIKMFromSignature", "signature too short to be valid key material (%d bytes)", len(sig))
	}
	return sig, nil
}

// BindingMessage constructs the message a wallet signs to derive
// signature-based IKM, binding the envelope to a specific application,
// domain, protocol version, purpose, chain, and signer address so a
// signature collected for one context can never be replayed for another.
func BindingMessage(appName, domain string, protocolVersion uint8, purpose, chainID string, address []byte, challenge []byte) []byte {
	var buf bytes.Buffer
	writeField := func(s []byte) {
		var length [4]byte
		binary.BigEndian.PutUint32(length[:], uint32(len(s)))
		buf.Write(length[:])
		buf.Write(s)
	}
	writeField([]byte(appName))
	writeField([]byte(domain))
	buf.WriteByte(protocolVersion)
	writeField([]byte(purpose))
	writeField([]byte(chainID))
	writeField(address)
	writeField(challenge)
	return buf.Bytes()
}

// deriveKeys expands (salt, ikm) into a data-encryption key and base nonce
// via HKDF-Extract-then-Expand. Identical inputs always yield identical
// outputs, which is what makes Encrypt/Decrypt deterministic for a given
// passphrase or signature.
func deriveKeys(ikm, salt []byte) (dek [keySize]byte, baseNonce [nonceSize]byte, err error) {
	extracted := hkdf.Extract(sha256.New, ikm, salt)

	dekReader := hkdf.Expand(sha256.New, extracted, []byte("dek"))
	if _, err = io.ReadFull(dekReader, dek[:]); err != nil {
		return dek, baseNonce, ferr.New(ferr.Fatal, "envelope.deriveKeys", err)
	}

	nonceReader := hkdf.Expand(sha256.New, extracted, []byte("base-nonce"))
	if _, err = io.ReadFull(nonceReader, baseNonce[:]); err != nil {
		return dek, baseNonce, ferr.New(ferr.Fatal, "envelope.deriveKeys", err)
	}
	return dek, baseNonce, nil
}

// chunkNonce computes the per-chunk nonce for chunk index i: BaseNonce XOR
// BE64(i) left-padded to the nonce's 12 bytes. Chunk 0 always reproduces
// BaseNonce bit-identically.
func chunkNonce(base [nonceSize]byte, index uint64) [nonceSize]byte {
	var indexBytes [nonceSize]byte
	binary.BigEndian.PutUint64(indexBytes[nonceSize-8:], index)
	var out [nonceSize]byte
	for i := range out {
		out[i] = base[i] ^ indexBytes[i]
	}
	return out
}

func aadFor(index uint64) []byte {
	var aad [8]byte
	binary.BigEndian.PutUint64(aad[:], index)
	return aad[:]
}

// EncryptOptions configures Encrypt beyond the required IKM.
type EncryptOptions struct {
	// ChunkSize is the plaintext byte count per chunk; DefaultChunkSize if zero.
	ChunkSize uint32
	// Salt, if non-nil, must be saltSize bytes and is used verbatim instead
	// of a freshly generated one; callers needing determinism for tests
	// supply it, production callers should leave it nil.
	Salt []byte
	// Challenge, if non-nil, is embedded in the header and the has_challenge
	// flag is set.
	Challenge []byte
	// IKMKind records how ikm was derived, for the header's ikm_kind byte.
	IKMKind byte
}

// Encrypt reads plaintext from r, encrypts it chunk by chunk under keys
// derived from ikm, and writes the bit-exact envelope format to w.
func Encrypt(w io.Writer, r io.Reader, ikm []byte, opts EncryptOptions) error {
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}

	var h Header
	h.ChunkSize = chunkSize
	h.IKMKind = opts.IKMKind
	if opts.Salt != nil {
		if len(opts.Salt) != saltSize {
			return ferr.Invalid("envelope.Encrypt", "salt must be %d bytes, got %d", saltSize, len(opts.Salt))
		}
		copy(h.Salt[:], opts.Salt)
	} else if _, err := rand.Read(h.Salt[:]); err != nil {
		return ferr.New(ferr.Fatal, "envelope.Encrypt", err)
	}
	if opts.Challenge != nil {
		if len(opts.Challenge) != challengeSize {
			return ferr.Invalid("envelope.Encrypt", "challenge must be %d bytes, got %d", challengeSize, len(opts.Challenge))
		}
		h.HasChallenge = true
		copy(h.Challenge[:], opts.Challenge)
	}

	if err := writeHeader(w, h); err != nil {
		return err
	}

	dek, baseNonce, err := deriveKeys(ikm, h.Salt[:])
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.New(dek[:])
	if err != nil {
		return ferr.New(ferr.Fatal, "envelope.Encrypt", err)
	}

	plaintextChunk := make([]byte, chunkSize)
	var index uint64
	for {
		n, readErr := io.ReadFull(r, plaintextChunk)
		if n > 0 {
			nonce := chunkNonce(baseNonce, index)
			ciphertext := aead.Seal(nil, nonce[:], plaintextChunk[:n], aadFor(index))

			var length [4]byte
			binary.BigEndian.PutUint32(length[:], uint32(len(ciphertext)))
			if _, err := w.Write(length[:]); err != nil {
				return ferr.New(ferr.Transient, "envelope.Encrypt", err)
			}
			if _, err := w.Write(ciphertext); err != nil {
				return ferr.New(ferr.Transient, "envelope.Encrypt", err)
			}
			index++
		}
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return nil
		}
		if readErr != nil {
			return ferr.New(ferr.Transient, "envelope.Encrypt", readErr)
		}
	}
}

// Decrypt reads an envelope stream from r, verifies and decrypts it under
// keys derived from ikm, and writes the recovered plaintext to w. Decrypt
// rejects any chunk whose authentication tag fails, or whose position in
// the stream does not match the expected running index.
func Decrypt(w io.Writer, r io.Reader, ikm []byte) error {
	h, err := readHeaderFrom(r)
	if err != nil {
		return err
	}

	dek, baseNonce, err := deriveKeys(ikm, h.Salt[:])
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.New(dek[:])
	if err != nil {
		return ferr.New(ferr.Fatal, "envelope.Decrypt", err)
	}

	var index uint64
	for {
		var lengthBuf [4]byte
		_, err := io.ReadFull(r, lengthBuf[:])
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return ferr.Invalid("envelope.Decrypt", "truncated chunk length at index %d: %v", index, err)
		}
		length := binary.BigEndian.Uint32(lengthBuf[:])

		ciphertext := make([]byte, length)
		if _, err := io.ReadFull(r, ciphertext); err != nil {
			return ferr.Invalid("envelope.Decrypt", "truncated chunk %d: %v", index, err)
		}

		nonce := chunkNonce(baseNonce, index)
		plaintext, err := aead.Open(nil, nonce[:], ciphertext, aadFor(index))
		if err != nil {
			return ferr.Invalid("envelope.Decrypt", "chunk %d failed authentication", index)
		}
		if _, err := w.Write(plaintext); err != nil {
			return ferr.New(ferr.Transient, "envelope.Decrypt", err)
		}
		index++
	}
}

func writeHeader(w io.Writer, h Header) error {
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(version)

	var flags byte
	if h.HasChallenge {
		flags |= flagHasChallenge
	}
	buf.WriteByte(flags)
	buf.WriteByte(h.IKMKind)
	buf.Write(h.Salt[:])

	var chunkSize [4]byte
	binary.BigEndian.PutUint32(chunkSize[:], h.ChunkSize)
	buf.Write(chunkSize[:])

	if h.HasChallenge {
		buf.Write(h.Challenge[:])
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return ferr.New(ferr.Transient, "envelope.writeHeader", err)
	}
	return nil
}

// ReadEncryptionHeader parses a Header from the first bytes of an envelope
// stream. It only needs enough bytes to cover a header without a challenge
// plus, if flags indicate one, the challenge itself — callers peeking at a
// stream's first few hundred bytes can call this without buffering the
// whole file.
func ReadEncryptionHeader(b []byte) (Header, error) {
	return readHeaderFrom(bytes.NewReader(b))
}

func readHeaderFrom(r io.Reader) (Header, error) {
	var h Header

	magicBuf := make([]byte, len(magic))
	if _, err := io.ReadFull(r, magicBuf); err != nil {
		return h, ferr.Invalid("envelope.readHeader", "truncated magic: %v", err)
	}
	if string(magicBuf) != magic {
		return h, ferr.Invalid("envelope.readHeader", "bad magic %q", magicBuf)
	}

	var fixed [3]byte // version, flags, ikm_kind
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return h, ferr.Invalid("envelope.readHeader", "truncated version/flags/ikm_kind: %v", err)
	}
	if fixed[0] != version {
		return h, ferr.Invalid("envelope.readHeader", "unsupported envelope version %d", fixed[0])
	}
	flags := fixed[1]
	h.HasChallenge = flags&flagHasChallenge != 0
	h.IKMKind = fixed[2]

	if _, err := io.ReadFull(r, h.Salt[:]); err != nil {
		return h, ferr.Invalid("envelope.readHeader", "truncated salt: %v", err)
	}

	var chunkSizeBuf [4]byte
	if _, err := io.ReadFull(r, chunkSizeBuf[:]); err != nil {
		return h, ferr.Invalid("envelope.readHeader", "truncated chunk_size: %v", err)
	}
	h.ChunkSize = binary.BigEndian.Uint32(chunkSizeBuf[:])
	if h.ChunkSize == 0 {
		return h, ferr.Invalid("envelope.readHeader", "chunk_size must be positive")
	}

	if h.HasChallenge {
		if _, err := io.ReadFull(r, h.Challenge[:]); err != nil {
			return h, ferr.Invalid("envelope.readHeader", "flags set has_challenge but challenge is missing: %v", err)
		}
	}

	return h, nil
}
