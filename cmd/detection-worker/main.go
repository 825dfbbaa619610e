package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-detection-pipeline/internal/config"
	"github.com/tendant/simple-detection-pipeline/internal/detector"
	"github.com/tendant/simple-detection-pipeline/internal/handlers"
	"github.com/tendant/simple-detection-pipeline/internal/logging"
	"github.com/tendant/simple-detection-pipeline/internal/metrics"
	"github.com/tendant/simple-detection-pipeline/internal/server"
	"github.com/tendant/simple-detection-pipeline/internal/workflows"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	config.LoadDotEnv()

	cfg, err := config.LoadWorker()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Worker) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "detection-worker",
		Short:        "Object detection inference service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), *cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "listen address (WORKER_HTTP_ADDR)")
	f.StringVar(&cfg.ResultStore, "result-store", cfg.ResultStore, "mongo, postgres or memory (RESULT_STORE)")
	f.StringVar(&cfg.MongoURI, "mongo-uri", cfg.MongoURI, "MongoDB connection string (MONGO_URI)")
	f.StringVar(&cfg.MongoDatabase, "mongo-database", cfg.MongoDatabase, "MongoDB database (MONGO_DATABASE)")
	f.StringVar(&cfg.MongoCollection, "mongo-collection", cfg.MongoCollection, "MongoDB collection (MONGO_COLLECTION)")
	f.StringVar(&cfg.PostgresURL, "postgres-url", cfg.PostgresURL, "PostgreSQL connection string (POSTGRES_URL)")
	f.StringVar(&cfg.Detector, "detector", cfg.Detector, "yolov5 or remote (DETECTOR)")
	f.StringVar(&cfg.YOLODir, "yolo-dir", cfg.YOLODir, "yolov5 checkout containing detect.py (YOLO_DIR)")
	f.StringVar(&cfg.YOLOWeights, "yolo-weights", cfg.YOLOWeights, "model weights (YOLO_WEIGHTS)")
	f.StringVar(&cfg.YOLOData, "yolo-data", cfg.YOLOData, "dataset YAML with class names (YOLO_DATA)")
	f.StringVar(&cfg.PythonBin, "python", cfg.PythonBin, "python interpreter (PYTHON_BIN)")
	f.StringVar(&cfg.RemoteModelURL, "remote-model-url", cfg.RemoteModelURL, "model server endpoint (REMOTE_MODEL_URL)")
	f.StringVar(&cfg.LabelsFile, "labels", cfg.LabelsFile, "label table YAML, overrides the dataset YAML (LABELS_FILE)")
	f.StringVar(&cfg.ProjectDir, "project-dir", cfg.ProjectDir, "prediction workspaces root (PROJECT_DIR)")
	f.StringVar(&cfg.DownloadDir, "download-dir", cfg.DownloadDir, "downloaded source images (DOWNLOAD_DIR)")
	f.BoolVar(&cfg.KeepWorkspace, "keep-workspace", cfg.KeepWorkspace, "leave workspaces on disk (KEEP_WORKSPACE)")
	config.BindStorageFlags(f, &cfg.Storage)
	config.BindLoggingFlags(f, &cfg.Logging)
	return cmd
}

func run(ctx context.Context, cfg config.Worker) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}

	store, err := config.OpenObjectStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}
	logger.Info("✓ Object store ready", "backend", cfg.Storage.Backend, "bucket", store.Bucket())

	resultStore, err := config.OpenResultStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize result store: %w", err)
	}
	defer resultStore.Close(context.Background())
	logger.Info("✓ Result store ready", "backend", cfg.ResultStore)

	labels := loadLabels(cfg, logger)

	det, err := newDetector(cfg, labels, logger)
	if err != nil {
		return err
	}
	logger.Info("✓ Detector ready", "detector", cfg.Detector)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	workflow := workflows.NewPredictWorkflow(store, det, resultStore, labels, workflows.PredictConfig{
		ProjectDir:    cfg.ProjectDir,
		DownloadDir:   cfg.DownloadDir,
		KeepWorkspace: cfg.KeepWorkspace,
	}, logger, metrics.NewWorker(reg))

	mux := http.NewServeMux()
	handlers.NewPredictHandler(workflow, resultStore, logger).Register(mux)
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.Run(ctx, srv, logger)
}

// loadLabels prefers an explicit labels file, then the dataset YAML, then COCO
func loadLabels(cfg config.Worker, logger *slog.Logger) *detector.LabelTable {
	path := cfg.LabelsFile
	if path == "" {
		path = cfg.YOLOData
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.YOLODir, path)
		}
	}

	table, err := detector.LoadLabelTable(path)
	if err != nil {
		logger.Warn("Using built-in COCO labels", "path", path, "error", err)
		return detector.COCO()
	}
	logger.Info("✓ Loaded label table", "path", path, "classes", table.Len())
	return table
}

func newDetector(cfg config.Worker, labels *detector.LabelTable, logger *slog.Logger) (detector.Detector, error) {
	switch cfg.Detector {
	case config.DetectorRemote:
		return detector.NewRemoteDetector(cfg.RemoteModelURL, 60*time.Second, labels, logger), nil
	case config.DetectorYOLOv5:
		y, err := detector.NewYOLOv5(detector.YOLOv5Config{
			Dir:     cfg.YOLODir,
			Python:  cfg.PythonBin,
			Weights: cfg.YOLOWeights,
			Data:    cfg.YOLOData,
		}, logger)
		if err != nil {
			return nil, err
		}
		return y, nil
	}
	return nil, fmt.Errorf("unknown detector %q", cfg.Detector)
}
