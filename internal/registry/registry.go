package registry

import (
	"context"
	"errors"
	"time"

	"github.com/arkanlabs/riskpipe/internal/contracts"
)

// ErrNotFound is returned when a requested model version does not exist.
var ErrNotFound = errors.New("model version not found")

// Pointer is the versioned production reference. Readers always dereference
// a whole pointer record, never a partially updated value.
type Pointer struct {
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry is the durable model store. SetCurrent must be atomic from the
// caller's perspective: after a failed SetCurrent the previous production
// reference is still intact and reachable.
type Registry interface {
	// Put uploads a model bundle under its version identifier.
	Put(ctx context.Context, bundle contracts.ModelBundle) error

	// Get retrieves a bundle by version. Returns ErrNotFound when absent.
	Get(ctx context.Context, versionID string) (contracts.ModelBundle, error)

	// GetCurrent returns the production version, or ok=false when no model
	// has ever been promoted.
	GetCurrent(ctx context.Context) (versionID string, ok bool, err error)

	// SetCurrent atomically repoints production to an already-uploaded
	// version.
	SetCurrent(ctx context.Context, versionID string) error

	// ListVersions returns all uploaded version identifiers.
	ListVersions(ctx context.Context) ([]string, error)
}
