package fisherman

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/scale"

	"github.com/moonsong-labs/fisherman/pkg/config"
	"github.com/moonsong-labs/fisherman/pkg/ferr"
	"github.com/moonsong-labs/fisherman/pkg/proof"
	"github.com/moonsong-labs/fisherman/pkg/types"
)

// deleteFilesCall is the SCALE-encodable argument list for deleteFiles and
// deleteFilesForIncompleteStorageRequest; both pallet calls share this
// shape, distinguished only by call index and whether Signatures is populated.
type deleteFilesCall struct {
	Target     [32]byte
	TargetIsBucket bool
	FileKeys   [][32]byte
	Signatures [][]byte
	Proof      []byte
}

// callIndex decodes a "0xMMCC" config string into the two-byte
// module/call-index prefix a pallet call is addressed by.
func callIndex(hexStr string) ([2]byte, error) {
	var idx [2]byte
	b, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil || len(b) != 2 {
		return idx, ferr.Invalid("fisherman.callIndex", "malformed call index %q", hexStr)
	}
	copy(idx[:], b)
	return idx, nil
}

// encodeCall SCALE-encodes call's arguments behind its two-byte call index,
// producing the pallet call bytes a signed extrinsic wraps.
func encodeCall(idx [2]byte, call deleteFilesCall) ([]byte, error) {
	buf := bytes.NewBuffer(idx[:])
	enc := scale.NewEncoder(buf)
	if err := enc.Encode(call); err != nil {
		return nil, ferr.New(ferr.Fatal, "fisherman.encodeCall", fmt.Errorf("scale encoding: %w", err))
	}
	return buf.Bytes(), nil
}

// signExtrinsic wraps callBytes with the fisherman's signature over it.
// Era/nonce/tip framing is chain-metadata-specific and out of scope here
// (Non-goals: "the chain runtime/pallets"); C1 hands this call+signature
// pair to author_submitAndWatchExtrinsic, matching an RPC surface that
// accepts pre-signed payloads without requiring this process to decode
// live runtime metadata.
func signExtrinsic(callBytes []byte, signerURI string) ([]byte, error) {
	pair, err := signature.KeyringPairFromSecret(signerURI, 42)
	if err != nil {
		return nil, ferr.New(ferr.Fatal, "fisherman.signExtrinsic", fmt.Errorf("deriving signer: %w", err))
	}
	sig, err := signature.Sign(callBytes, signerURI)
	if err != nil {
		return nil, ferr.New(ferr.Fatal, "fisherman.signExtrinsic", fmt.Errorf("signing: %w", err))
	}

	out := make([]byte, 0, 4+len(callBytes)+len(pair.PublicKey)+len(sig))
	n := uint32(len(callBytes))
	out = append(out, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	out = append(out, callBytes...)
	out = append(out, pair.PublicKey...)
	out = append(out, sig...)
	return out, nil
}

// buildExtrinsic assembles and signs the deleteFiles-class extrinsic for
// one group, per §4.2's construction rules.
func buildExtrinsic(cfg config.Config, g group, root types.ForestRoot, inclusion proof.InclusionProof) ([]byte, error) {
	call := deleteFilesCall{
		TargetIsBucket: g.Target.Kind == types.ProviderKindMSP,
		FileKeys:       toArrays(g.FileKeys),
		Proof:          inclusion,
	}
	if call.TargetIsBucket {
		call.Target = g.Target.Bucket
	} else {
		call.Target = g.Target.Provider
	}

	idxHex := cfg.DeleteFilesIncompleteCallIndex
	if g.Class == types.IntentClassUser {
		idxHex = cfg.DeleteFilesCallIndex
		call.Signatures = g.Signatures
	}
	idx, err := callIndex(idxHex)
	if err != nil {
		return nil, err
	}

	callBytes, err := encodeCall(idx, call)
	if err != nil {
		return nil, err
	}
	return signExtrinsic(callBytes, cfg.FishermanSignerURI)
}

func toArrays(keys []types.FileKey) [][32]byte {
	out := make([][32]byte, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
