package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tendant/simple-detection-pipeline/internal/results"
	"github.com/tendant/simple-detection-pipeline/internal/workflows"
	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

// Executor runs one prediction
type Executor interface {
	Execute(wctx *workflows.WorkflowContext) (*detection.PredictionSummary, error)
}

// SummaryReader looks up stored prediction summaries
type SummaryReader interface {
	Get(ctx context.Context, predictionID string) (*detection.PredictionSummary, error)
}

// PredictHandler serves the inference HTTP API
type PredictHandler struct {
	workflow Executor
	results  SummaryReader
	logger   *slog.Logger
}

// NewPredictHandler creates a new predict handler
func NewPredictHandler(workflow Executor, results SummaryReader, logger *slog.Logger) *PredictHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictHandler{
		workflow: workflow,
		results:  results,
		logger:   logger,
	}
}

// Register mounts the handler routes on mux
func (h *PredictHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/predict", h.HandlePredict)
	mux.HandleFunc("/predictions/", h.HandleGetPrediction)
	mux.HandleFunc("/health", HandleHealth)
}

// HandlePredict handles POST /predict?imgName=<key> - runs detection synchronously
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	wctx := &workflows.WorkflowContext{
		// The caller giving up must not abort a run already in progress
		Ctx:       context.WithoutCancel(r.Context()),
		ImageName: r.URL.Query().Get("imgName"),
		RunID:     workflows.NewRunID(),
	}

	summary, err := h.workflow.Execute(wctx)
	if err != nil {
		status, body := errorResponse(err)
		h.logger.Warn("Prediction failed", "prediction_id", wctx.RunID, "status", status, "error", err)
		http.Error(w, body, status)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// HandleGetPrediction handles GET /predictions/{id} - returns a stored summary
func (h *PredictHandler) HandleGetPrediction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/predictions/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "prediction_id is required", http.StatusBadRequest)
		return
	}

	summary, err := h.results.Get(r.Context(), id)
	if errors.Is(err, results.ErrSummaryNotFound) {
		http.Error(w, fmt.Sprintf("prediction: %s. prediction result not found", id), http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to load prediction summary", "prediction_id", id, "error", err)
		http.Error(w, "Error loading prediction summary", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// HandleHealth returns health status
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// errorResponse maps a workflow error to a status code and plain-text body
func errorResponse(err error) (int, string) {
	var nf *workflows.NotFoundError
	switch {
	case errors.Is(err, workflows.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &nf):
		return http.StatusNotFound, nf.Error()
	case errors.Is(err, detection.ErrCredentialsMissing):
		return http.StatusInternalServerError, "Error: object store credentials not found"
	case errors.Is(err, detection.ErrRetrieval):
		return http.StatusInternalServerError, "Error downloading image from the object store"
	case errors.Is(err, detection.ErrStorage):
		return http.StatusInternalServerError, "Error uploading image to the object store"
	case errors.Is(err, workflows.ErrDetection):
		return http.StatusInternalServerError, "Error running object detection"
	case errors.Is(err, workflows.ErrMalformedLabels):
		return http.StatusInternalServerError, "Error parsing prediction labels"
	case errors.Is(err, detection.ErrPersistence):
		return http.StatusInternalServerError, fmt.Sprintf("Error storing prediction summary: %v", err)
	}
	return http.StatusInternalServerError, "Internal server error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
