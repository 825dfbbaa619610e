package workflows

import (
	"context"

	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

// WorkflowContext contains context for workflow execution
type WorkflowContext struct {
	Ctx context.Context

	// ImageName is the object-store key of the source image
	ImageName string

	// RunID doubles as the prediction id
	RunID string
}

// ObjectStore moves files between local disk and the object store
type ObjectStore interface {
	Upload(ctx context.Context, localPath, key string) error
	Download(ctx context.Context, key, localPath string) error
}

// SummaryWriter persists prediction summaries
type SummaryWriter interface {
	Insert(ctx context.Context, summary *detection.PredictionSummary) error
}
