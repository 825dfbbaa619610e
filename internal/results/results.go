// Package results persists prediction summaries. Every summary is written
// exactly once; there are no updates or deletes.
package results

import (
	"context"
	"errors"

	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

// ErrSummaryNotFound is returned by Get when no summary has the requested id
var ErrSummaryNotFound = errors.New("prediction summary not found")

// Store persists prediction summaries
type Store interface {
	// Insert writes one summary document
	Insert(ctx context.Context, summary *detection.PredictionSummary) error

	// Get returns the summary stored under predictionID
	Get(ctx context.Context, predictionID string) (*detection.PredictionSummary, error)

	// Close releases the underlying connection
	Close(ctx context.Context) error
}

var (
	_ Store = (*MongoStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
