// Package detector runs object detection on a local image and writes the
// results into a per-prediction workspace: the annotated image and a
// YOLO-format labels file with one "class cx cy w h" line per box.
package detector

import (
	"context"
	"path/filepath"
	"strings"
)

// Detector runs detection against imagePath and writes its outputs into ws.
// When nothing is detected no labels file is written.
type Detector interface {
	Detect(ctx context.Context, imagePath string, ws Workspace) error
}

// DetectorFunc adapts a function to the Detector interface
type DetectorFunc func(ctx context.Context, imagePath string, ws Workspace) error

// Detect calls f
func (f DetectorFunc) Detect(ctx context.Context, imagePath string, ws Workspace) error {
	return f(ctx, imagePath, ws)
}

// Workspace is the prediction-scoped output directory of one detection run
type Workspace struct {
	// Dir is <project>/<prediction id>
	Dir string

	// ImageName is the base name of the source image
	ImageName string
}

// NewWorkspace returns the workspace for predictionID under projectDir
func NewWorkspace(projectDir, predictionID, imageName string) Workspace {
	return Workspace{
		Dir:       filepath.Join(projectDir, predictionID),
		ImageName: filepath.Base(imageName),
	}
}

// AnnotatedPath is where the image with drawn boxes is written
func (w Workspace) AnnotatedPath() string {
	return filepath.Join(w.Dir, w.ImageName)
}

// LabelsPath is where the raw per-box text records are written
func (w Workspace) LabelsPath() string {
	stem := strings.TrimSuffix(w.ImageName, filepath.Ext(w.ImageName))
	return filepath.Join(w.Dir, "labels", stem+".txt")
}
