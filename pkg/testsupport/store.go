package testsupport

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/moonsong-labs/fisherman/pkg/store"
	"github.com/moonsong-labs/fisherman/pkg/types"
)

// NewTestStore opens a fresh sqlite-backed Store in a temp directory,
// registering cleanup with t.
func NewTestStore(t *testing.T) store.Store {
	t.Helper()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "fisherman.db")
	st, err := store.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("testsupport: store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// ErrPaused is returned by every PausableStore method while paused.
var ErrPaused = errors.New("testsupport: store paused")

// PausableStore wraps a Store so tests can simulate a database outage
// mid-run and verify the indexer/fisherman loops recover once it clears.
type PausableStore struct {
	inner store.Store

	mu     sync.RWMutex
	paused bool
}

// NewPausableStore wraps inner, initially unpaused.
func NewPausableStore(inner store.Store) *PausableStore {
	return &PausableStore{inner: inner}
}

// PauseDB toggles simulated database unavailability.
func (p *PausableStore) PauseDB(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = paused
}

func (p *PausableStore) isPaused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

func (p *PausableStore) WithTx(ctx context.Context, fn func(tx *store.Tx) error) error {
	if p.isPaused() {
		return ErrPaused
	}
	return p.inner.WithTx(ctx, fn)
}

func (p *PausableStore) LastIndexedBlock(ctx context.Context) (uint64, error) {
	if p.isPaused() {
		return 0, ErrPaused
	}
	return p.inner.LastIndexedBlock(ctx)
}

func (p *PausableStore) PendingIntents(ctx context.Context, class types.IntentClass) ([]types.DeletionIntent, error) {
	if p.isPaused() {
		return nil, ErrPaused
	}
	return p.inner.PendingIntents(ctx, class)
}

func (p *PausableStore) CountPendingIntents(ctx context.Context, class string) (int, error) {
	if p.isPaused() {
		return 0, ErrPaused
	}
	return p.inner.CountPendingIntents(ctx, class)
}

func (p *PausableStore) FileAssociations(ctx context.Context, file types.FileKey) ([]types.ProviderFileAssociation, error) {
	if p.isPaused() {
		return nil, ErrPaused
	}
	return p.inner.FileAssociations(ctx, file)
}

func (p *PausableStore) DeletionSignature(ctx context.Context, file types.FileKey) ([]byte, error) {
	if p.isPaused() {
		return nil, ErrPaused
	}
	return p.inner.DeletionSignature(ctx, file)
}

func (p *PausableStore) ForestRoot(ctx context.Context, provider types.ProviderID) (types.ForestRoot, error) {
	if p.isPaused() {
		return types.ForestRoot{}, ErrPaused
	}
	return p.inner.ForestRoot(ctx, provider)
}

func (p *PausableStore) Close() error {
	return p.inner.Close()
}
