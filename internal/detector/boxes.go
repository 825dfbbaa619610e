package detector

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

// BoxFunc is the opaque detection capability: image in, boxes out
type BoxFunc func(ctx context.Context, imagePath string) ([]detection.Detection, error)

// FromBoxes adapts a BoxFunc to a Detector. The returned detector draws the
// boxes onto a copy of the image and writes the labels file the way
// detect.py does, skipping the labels file when nothing was found. Boxes
// whose class is not in table are logged and dropped.
func FromBoxes(fn BoxFunc, table *LabelTable, logger *slog.Logger) Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &boxDetector{detect: fn, table: table, logger: logger}
}

type boxDetector struct {
	detect BoxFunc
	table  *LabelTable
	logger *slog.Logger
}

func (d *boxDetector) Detect(ctx context.Context, imagePath string, ws Workspace) error {
	dets, err := d.detect(ctx, imagePath)
	if err != nil {
		return err
	}
	dets = d.known(dets)

	if err := os.MkdirAll(ws.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	if err := Annotate(imagePath, ws.AnnotatedPath(), dets); err != nil {
		return fmt.Errorf("failed to annotate image: %w", err)
	}

	if len(dets) == 0 {
		return nil
	}
	return WriteLabels(ws.LabelsPath(), d.table, dets)
}

func (d *boxDetector) known(dets []detection.Detection) []detection.Detection {
	kept := make([]detection.Detection, 0, len(dets))
	for _, det := range dets {
		if _, ok := d.table.Index(det.Class); !ok {
			d.logger.Warn("Dropping box with unknown class", "class", det.Class)
			continue
		}
		kept = append(kept, det)
	}
	return kept
}
