package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arkanlabs/riskpipe/internal/contracts"
)

// MemoryRegistry is a mutex-guarded in-memory registry for tests and local
// runs without an object store. It honors the same atomicity contract as
// the S3 registry: SetCurrent refuses unreachable versions, and failures
// never disturb the existing pointer.
type MemoryRegistry struct {
	mu      sync.RWMutex
	bundles map[string]contracts.ModelBundle
	pointer Pointer

	// Failure injection for atomicity tests.
	FailPut        bool
	FailSetCurrent bool
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{bundles: make(map[string]contracts.ModelBundle)}
}

// Put stores a bundle under its version.
func (r *MemoryRegistry) Put(ctx context.Context, bundle contracts.ModelBundle) error {
	if r.FailPut {
		return fmt.Errorf("injected put failure")
	}
	if bundle.Version == "" {
		return fmt.Errorf("bundle has no version")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles[bundle.Version] = bundle
	return nil
}

// Get retrieves a bundle by version.
func (r *MemoryRegistry) Get(ctx context.Context, versionID string) (contracts.ModelBundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bundle, ok := r.bundles[versionID]
	if !ok {
		return contracts.ModelBundle{}, fmt.Errorf("version %s: %w", versionID, ErrNotFound)
	}
	return bundle, nil
}

// GetCurrent returns the production version.
func (r *MemoryRegistry) GetCurrent(ctx context.Context) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pointer.Version, r.pointer.Version != "", nil
}

// SetCurrent atomically repoints production.
func (r *MemoryRegistry) SetCurrent(ctx context.Context, versionID string) error {
	if r.FailSetCurrent {
		return fmt.Errorf("injected set-current failure")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bundles[versionID]; !ok {
		return fmt.Errorf("refusing to promote unreachable version %s: %w", versionID, ErrNotFound)
	}

	r.pointer = Pointer{Version: versionID, UpdatedAt: time.Now().UTC()}
	return nil
}

// ListVersions returns all stored version identifiers, sorted.
func (r *MemoryRegistry) ListVersions(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := make([]string, 0, len(r.bundles))
	for v := range r.bundles {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return versions, nil
}
