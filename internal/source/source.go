package source

import (
	"context"

	"github.com/arkanlabs/riskpipe/internal/contracts"
)

// RecordSource is the query interface over the external record store.
// FetchAll returns the full current record set.
type RecordSource interface {
	FetchAll(ctx context.Context) ([]contracts.Record, error)
}
