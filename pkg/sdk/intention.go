package sdk

import (
	"bytes"
	"fmt"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/scale"

	"github.com/moonsong-labs/fisherman/pkg/ferr"
	"github.com/moonsong-labs/fisherman/pkg/types"
)

// FileOperation enumerates the operations a FileOperationIntention may
// authorize; Delete is the only one the fisherman scheduler consumes.
type FileOperation byte

const (
	// OperationDelete requests that a file be removed from the network.
	OperationDelete FileOperation = 0
)

// FileOperationIntention is the signed message clients submit to request an
// operation on a file they own: the operation and file it names, SCALE-
// encoded and signed the same way a pallet call's arguments are.
type FileOperationIntention struct {
	FileKey   [32]byte
	Operation FileOperation
}

// SignedIntention is a FileOperationIntention and its detached signature,
// ready for submission as requestDeleteFile's argument.
type SignedIntention struct {
	Encoded   []byte
	Signature []byte
	PublicKey []byte
}

// BuildDeleteIntention constructs, SCALE-encodes, and signs a
// FileOperationIntention{file, Delete} using the signer named by
// signerURI (an sr25519/ed25519 key URI, matching
// config.FishermanSignerURI's convention on the scheduler side).
func BuildDeleteIntention(file types.FileKey, signerURI string) (SignedIntention, error) {
	intention := FileOperationIntention{FileKey: file, Operation: OperationDelete}

	var buf bytes.Buffer
	if err := scale.NewEncoder(&buf).Encode(intention); err != nil {
		return SignedIntention{}, ferr.New(ferr.Fatal, "sdk.BuildDeleteIntention", fmt.Errorf("scale encoding: %w", err))
	}
	encoded := buf.Bytes()

	pair, err := signature.KeyringPairFromSecret(signerURI, 42)
	if err != nil {
		return SignedIntention{}, ferr.New(ferr.Fatal, "sdk.BuildDeleteIntention", fmt.Errorf("deriving signer: %w", err))
	}
	sig, err := signature.Sign(encoded, signerURI)
	if err != nil {
		return SignedIntention{}, ferr.New(ferr.Fatal, "sdk.BuildDeleteIntention", fmt.Errorf("signing: %w", err))
	}

	return SignedIntention{Encoded: encoded, Signature: sig, PublicKey: pair.PublicKey}, nil
}
