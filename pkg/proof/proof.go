// Package proof models the forest-proof provider: an external capability
// that, given a forest root and a set of file keys, produces an inclusion
// proof the fisherman embeds into its deletion extrinsics. The forest data
// structure and its verifier live on the provider side; this package only
// defines the contract and an HTTP-backed client.
package proof

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/moonsong-labs/fisherman/pkg/ferr"
	"github.com/moonsong-labs/fisherman/pkg/types"
)

// InclusionProof is an opaque proof blob the chain's forest verifier
// accepts alongside a deleteFiles-class extrinsic. The fisherman never
// interprets its bytes — it only carries them from the provider to C1.
type InclusionProof []byte

// Provider produces inclusion proofs. The production implementation is
// HTTPProvider; pkg/fisherman's tests substitute their own stubProofProvider.
type Provider interface {
	// Prove returns a proof that every key in files is present under root.
	Prove(ctx context.Context, root types.ForestRoot, files []types.FileKey) (InclusionProof, error)
}

// HTTPProvider calls a forest-proof service over plain HTTP, matching the
// out-of-scope collaborator contract in the design notes (the provider's
// HTTP/REST surface is a black box we only consume).
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider constructs a client against baseURL (e.g. http://proof-provider:8090).
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type proveRequest struct {
	Root  string   `json:"root"`
	Files []string `json:"files"`
}

type proveResponse struct {
	Proof string `json:"proof"`
	Error string `json:"error,omitempty"`
}

// Prove implements Provider.
func (p *HTTPProvider) Prove(ctx context.Context, root types.ForestRoot, files []types.FileKey) (InclusionProof, error) {
	req := proveRequest{Root: fmt.Sprintf("%x", root[:])}
	for _, f := range files {
		req.Files = append(req.Files, fmt.Sprintf("%x", f[:]))
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, ferr.New(ferr.Fatal, "proof.Prove", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/prove", bytes.NewReader(body))
	if err != nil {
		return nil, ferr.New(ferr.Fatal, "proof.Prove", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, ferr.New(ferr.Transient, "proof.Prove", err)
	}
	defer resp.Body.Close()

	var out proveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, ferr.New(ferr.Transient, "proof.Prove", fmt.Errorf("decoding response: %w", err))
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return nil, ferr.New(ferr.Transient, "proof.Prove", fmt.Errorf("provider returned %d: %s", resp.StatusCode, out.Error))
	}
	return InclusionProof(out.Proof), nil
}
