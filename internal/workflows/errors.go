package workflows

import (
	"errors"
	"fmt"

	"github.com/tendant/simple-detection-pipeline/internal/metrics"
	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

var (
	// ErrInvalidRequest is returned when the image name is unusable
	ErrInvalidRequest = errors.New("invalid prediction request")

	// ErrDetection is returned when the detector fails to run
	ErrDetection = errors.New("object detection failed")

	// ErrMalformedLabels is returned when the detector output cannot be parsed
	ErrMalformedLabels = errors.New("malformed prediction labels")
)

// NotFoundError reports a finished detection run that left no labels file
type NotFoundError struct {
	PredictionID    string
	OriginalImgPath string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("prediction: %s/%s. prediction result not found", e.PredictionID, e.OriginalImgPath)
}

func (e *NotFoundError) Unwrap() error {
	return detection.ErrNotFound
}

// Outcome classifies a workflow error for metrics
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrInvalidRequest):
		return metrics.OutcomeBadRequest
	case errors.Is(err, detection.ErrRetrieval):
		return metrics.OutcomeRetrieval
	case errors.Is(err, ErrDetection):
		return metrics.OutcomeDetector
	case errors.Is(err, detection.ErrStorage):
		return metrics.OutcomeStorage
	case errors.Is(err, detection.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrMalformedLabels):
		return metrics.OutcomeParse
	case errors.Is(err, detection.ErrPersistence):
		return metrics.OutcomePersistence
	}
	return "error"
}
