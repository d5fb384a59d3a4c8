package source

import (
	"context"

	"github.com/arkanlabs/riskpipe/internal/contracts"
)

// MemorySource serves a fixed record set. Used by tests and local runs
// without a document database.
type MemorySource struct {
	Records []contracts.Record
	Err     error // returned from every FetchAll when non-nil
}

// NewMemorySource creates a source over the given records.
func NewMemorySource(records []contracts.Record) *MemorySource {
	return &MemorySource{Records: records}
}

// FetchAll returns a copy of the configured record set.
func (s *MemorySource) FetchAll(ctx context.Context) ([]contracts.Record, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]contracts.Record, len(s.Records))
	copy(out, s.Records)
	return out, nil
}
