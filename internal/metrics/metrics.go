// Package metrics defines the Prometheus collectors exported by the bot and the worker.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "detection"

// Prediction outcomes
const (
	OutcomeSuccess      = "success"
	OutcomeBadRequest   = "bad_request"
	OutcomeRetrieval    = "retrieval_error"
	OutcomeDetector     = "detector_error"
	OutcomeStorage      = "storage_error"
	OutcomeNotFound     = "not_found"
	OutcomeParse        = "parse_error"
	OutcomePersistence  = "persistence_error"
	OutcomeNoPhoto      = "no_photo"
	OutcomeUpload       = "upload_error"
	OutcomeCredentials  = "credentials_missing"
	OutcomeInference    = "inference_error"
	OutcomeNoDetections = "no_detections"
)

// Worker holds the inference service collectors
type Worker struct {
	predictions *prometheus.CounterVec
	detections  prometheus.Histogram
	duration    prometheus.Histogram
}

// NewWorker registers the worker collectors on reg
func NewWorker(reg prometheus.Registerer) *Worker {
	f := promauto.With(reg)
	return &Worker{
		predictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "predictions_total",
			Help:      "Prediction requests by outcome.",
		}, []string{"outcome"}),
		detections: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "detections_per_image",
			Help:      "Number of objects detected per successful prediction.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "prediction_duration_seconds",
			Help:      "Wall time of a prediction run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

// ObservePrediction records one finished prediction
func (m *Worker) ObservePrediction(outcome string, detections int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.predictions.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
	if outcome == OutcomeSuccess {
		m.detections.Observe(float64(detections))
	}
}

// Predictions exposes the outcome counter for tests
func (m *Worker) Predictions() *prometheus.CounterVec {
	return m.predictions
}

// Bot holds the chat front end collectors
type Bot struct {
	messages *prometheus.CounterVec
	latency  prometheus.Histogram
}

// NewBot registers the bot collectors on reg
func NewBot(reg prometheus.Registerer) *Bot {
	f := promauto.With(reg)
	return &Bot{
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "messages_total",
			Help:      "Inbound chat messages by handling outcome.",
		}, []string{"outcome"}),
		latency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bot",
			Name:      "predict_request_seconds",
			Help:      "Round trip time of calls to the detection worker.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

// ObserveMessage records the outcome of one handled message
func (m *Bot) ObserveMessage(outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(outcome).Inc()
}

// ObservePredictLatency records one call to the worker
func (m *Bot) ObservePredictLatency(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe(elapsed.Seconds())
}

// Messages exposes the outcome counter for tests
func (m *Bot) Messages() *prometheus.CounterVec {
	return m.messages
}

// Handler serves the collectors gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
