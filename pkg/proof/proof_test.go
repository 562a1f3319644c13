package proof

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/moonsong-labs/fisherman/pkg/types"
)

func TestHTTPProviderProve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req proveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Files) != 2 {
			t.Errorf("expected 2 files, got %d", len(req.Files))
		}
		json.NewEncoder(w).Encode(proveResponse{Proof: "deadbeef"})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second)
	var root types.ForestRoot
	var f1, f2 types.FileKey
	f1[0], f2[0] = 1, 2

	proof, err := p.Prove(context.Background(), root, []types.FileKey{f1, f2})
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	if string(proof) != "deadbeef" {
		t.Errorf("unexpected proof: %s", proof)
	}
}

func TestHTTPProviderErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(proveResponse{Error: "root not found"})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second)
	var root types.ForestRoot
	_, err := p.Prove(context.Background(), root, nil)
	if err == nil {
		t.Fatal("expected error from provider")
	}
}
