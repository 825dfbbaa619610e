package workflows

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-detection-pipeline/internal/detector"
	"github.com/tendant/simple-detection-pipeline/internal/metrics"
	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

// PredictConfig holds filesystem settings for PredictWorkflow
type PredictConfig struct {
	// ProjectDir holds one workspace directory per prediction
	ProjectDir string

	// DownloadDir receives source images fetched from the object store
	DownloadDir string

	// KeepWorkspace leaves the workspace and source image on disk after a run
	KeepWorkspace bool
}

// PredictWorkflow downloads an image, runs detection, stores the annotated
// image and persists the summary.
type PredictWorkflow struct {
	store    ObjectStore
	detector detector.Detector
	results  SummaryWriter
	labels   *detector.LabelTable
	cfg      PredictConfig
	logger   *slog.Logger
	metrics  *metrics.Worker
	now      func() time.Time
}

// NewPredictWorkflow creates a new prediction workflow
func NewPredictWorkflow(store ObjectStore, det detector.Detector, results SummaryWriter, labels *detector.LabelTable, cfg PredictConfig, logger *slog.Logger, m *metrics.Worker) *PredictWorkflow {
	if labels == nil {
		labels = detector.COCO()
	}
	if cfg.ProjectDir == "" {
		cfg.ProjectDir = "static/data"
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictWorkflow{
		store:    store,
		detector: det,
		results:  results,
		labels:   labels,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// NewRunID generates a prediction id
func NewRunID() string {
	return uuid.New().String()
}

// Execute runs one prediction. Every call produces a new workspace and a new
// summary, even for an image name seen before.
func (w *PredictWorkflow) Execute(wctx *WorkflowContext) (summary *detection.PredictionSummary, err error) {
	if wctx.RunID == "" {
		wctx.RunID = NewRunID()
	}
	log := w.logger.With("prediction_id", wctx.RunID, "image", wctx.ImageName)
	start := w.now()
	defer func() {
		n := 0
		if summary != nil {
			n = len(summary.Labels)
		}
		w.metrics.ObservePrediction(Outcome(err), n, w.now().Sub(start))
	}()

	log.Info("start processing")

	// Step 1: Validate request
	if err := validateImageName(wctx.ImageName); err != nil {
		log.Warn("Validation failed", "error", err)
		return nil, err
	}

	// Step 2: Download source image
	srcDir := filepath.Join(w.cfg.DownloadDir, wctx.RunID)
	originalImgPath := filepath.Join(srcDir, wctx.ImageName)
	ws := detector.NewWorkspace(w.cfg.ProjectDir, wctx.RunID, wctx.ImageName)
	if !w.cfg.KeepWorkspace {
		defer w.cleanup(log, srcDir, ws.Dir)
	}

	if err := os.MkdirAll(srcDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %w", detection.ErrRetrieval, err)
	}
	if err := w.store.Download(wctx.Ctx, wctx.ImageName, originalImgPath); err != nil {
		log.Error("Error downloading image from the object store", "error", err)
		return nil, fmt.Errorf("%w: %w", detection.ErrRetrieval, err)
	}
	log.Info("Download img completed", "path", originalImgPath)

	// Step 3: Detect objects
	if err := w.detector.Detect(wctx.Ctx, originalImgPath, ws); err != nil {
		log.Error("Detection failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrDetection, err)
	}
	log.Info("done")

	// Step 4: Upload annotated image next to, never over, the source
	predictedKey := detection.PredictedKey(wctx.ImageName)
	if err := w.store.Upload(wctx.Ctx, ws.AnnotatedPath(), predictedKey); err != nil {
		log.Error("Error uploading predicted image", "key", predictedKey, "error", err)
		return nil, fmt.Errorf("%w: %w", detection.ErrStorage, err)
	}
	log.Info("Predicted image uploaded", "key", predictedKey)

	// Step 5: Parse labels
	labels, err := detector.ParseLabels(ws.LabelsPath(), w.labels)
	if err != nil {
		if errors.Is(err, detection.ErrNotFound) {
			nf := &NotFoundError{PredictionID: wctx.RunID, OriginalImgPath: originalImgPath}
			log.Info(nf.Error())
			return nil, nf
		}
		log.Error("Failed to parse labels", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrMalformedLabels, err)
	}
	log.Info("prediction summary", "labels", len(labels))

	// Step 6: Persist summary
	summary = &detection.PredictionSummary{
		PredictionID:     wctx.RunID,
		OriginalImgPath:  originalImgPath,
		PredictedImgPath: ws.AnnotatedPath(),
		PredictedImgKey:  predictedKey,
		Labels:           labels,
		Time:             w.now().UTC(),
	}
	if err := w.results.Insert(wctx.Ctx, summary); err != nil {
		log.Error("Error storing prediction summary", "error", err)
		return nil, fmt.Errorf("%w: %w", detection.ErrPersistence, err)
	}
	log.Info("Prediction summary stored")

	return summary, nil
}

func (w *PredictWorkflow) cleanup(log *slog.Logger, dirs ...string) {
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("Failed to remove working files", "dir", dir, "error", err)
		}
	}
}

// validateImageName accepts a single path element
func validateImageName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: imgName is required", ErrInvalidRequest)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: imgName must be a plain file name", ErrInvalidRequest)
	}
	return nil
}
