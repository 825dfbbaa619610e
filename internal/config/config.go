// Package config loads process configuration from the environment.
//
// Values come from the process environment, after an optional .env file in
// the working directory has been applied. Every field has a default so a
// binary can start with no configuration at all in development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageS3         = "s3"
	StorageFilesystem = "filesystem"
)

// Result store backends
const (
	ResultsMongo    = "mongo"
	ResultsPostgres = "postgres"
	ResultsMemory   = "memory"
)

// Detector backends
const (
	DetectorYOLOv5 = "yolov5"
	DetectorRemote = "remote"
)

// Bot transport modes
const (
	ModeWebhook = "webhook"
	ModePolling = "polling"
)

// Storage configures the object store shared by the bot and the worker
type Storage struct {
	Backend string // s3 or filesystem
	Bucket  string

	// Dir is the filesystem backend root; one subdirectory per bucket
	Dir string

	Region   string
	Endpoint string
}

// WithDefaults fills in default values for optional fields
func (c *Storage) WithDefaults() {
	if c.Backend == "" {
		c.Backend = StorageS3
	}
	if c.Dir == "" {
		c.Dir = "./data/objects"
	}
}

// Validate reports configuration that cannot work
func (c *Storage) Validate() error {
	switch c.Backend {
	case StorageS3, StorageFilesystem:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Backend)
	}
	if c.Bucket == "" {
		return fmt.Errorf("BUCKET_NAME is required")
	}
	return nil
}

// Logging configures the slog handler
type Logging struct {
	Level  string
	Format string
}

// Bot configures the chat front end
type Bot struct {
	Token  string
	AppURL string

	HTTPAddr string
	Mode     string

	// WorkerURL is the base URL of the detection worker
	WorkerURL      string
	PredictTimeout time.Duration

	WorkDir       string
	UploadAck     bool
	SendAnnotated bool

	Storage Storage
	Logging Logging
}

// WithDefaults fills in default values for optional fields
func (c *Bot) WithDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8443"
	}
	if c.Mode == "" {
		c.Mode = ModeWebhook
	}
	if c.WorkerURL == "" {
		c.WorkerURL = "http://yolo5-microservice:8081"
	}
	if c.PredictTimeout == 0 {
		c.PredictTimeout = 60 * time.Second
	}
	if c.WorkDir == "" {
		c.WorkDir = os.TempDir()
	}
	c.Storage.WithDefaults()
}

// Validate reports configuration that cannot work
func (c *Bot) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	switch c.Mode {
	case ModeWebhook:
		if c.AppURL == "" {
			return fmt.Errorf("TELEGRAM_APP_URL is required in webhook mode")
		}
	case ModePolling:
	default:
		return fmt.Errorf("unknown bot mode %q", c.Mode)
	}
	return c.Storage.Validate()
}

// Worker configures the inference service
type Worker struct {
	HTTPAddr string

	ResultStore     string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	PostgresURL     string

	Detector       string
	YOLODir        string
	YOLOWeights    string
	YOLOData       string
	PythonBin      string
	RemoteModelURL string

	// LabelsFile overrides the label table; defaults to YOLOData under YOLODir
	LabelsFile string

	ProjectDir    string
	DownloadDir   string
	KeepWorkspace bool

	Storage Storage
	Logging Logging
}

// WithDefaults fills in default values for optional fields
func (c *Worker) WithDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8081"
	}
	if c.ResultStore == "" {
		c.ResultStore = ResultsMongo
	}
	if c.MongoURI == "" {
		c.MongoURI = "mongodb://mongo1:27017/"
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = "detection"
	}
	if c.MongoCollection == "" {
		c.MongoCollection = "predictions"
	}
	if c.Detector == "" {
		c.Detector = DetectorYOLOv5
	}
	if c.YOLODir == "" {
		c.YOLODir = "."
	}
	if c.YOLOWeights == "" {
		c.YOLOWeights = "yolov5s.pt"
	}
	if c.YOLOData == "" {
		c.YOLOData = "data/coco128.yaml"
	}
	if c.PythonBin == "" {
		c.PythonBin = "python3"
	}
	if c.ProjectDir == "" {
		c.ProjectDir = "static/data"
	}
	if c.DownloadDir == "" {
		c.DownloadDir = os.TempDir()
	}
	c.Storage.WithDefaults()
}

// Validate reports configuration that cannot work
func (c *Worker) Validate() error {
	switch c.ResultStore {
	case ResultsMongo, ResultsMemory:
	case ResultsPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required for the postgres result store")
		}
	default:
		return fmt.Errorf("unknown result store %q", c.ResultStore)
	}
	switch c.Detector {
	case DetectorYOLOv5:
	case DetectorRemote:
		if c.RemoteModelURL == "" {
			return fmt.Errorf("REMOTE_MODEL_URL is required for the remote detector")
		}
	default:
		return fmt.Errorf("unknown detector %q", c.Detector)
	}
	return c.Storage.Validate()
}

// LoadDotEnv applies a .env file when one exists. Existing variables win.
func LoadDotEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadBot reads the bot configuration from the environment
func LoadBot() (Bot, error) {
	var err error
	c := Bot{
		Token:     os.Getenv("TELEGRAM_TOKEN"),
		AppURL:    os.Getenv("TELEGRAM_APP_URL"),
		HTTPAddr:  os.Getenv("BOT_HTTP_ADDR"),
		Mode:      os.Getenv("BOT_MODE"),
		WorkerURL: os.Getenv("YOLO_URL"),
		WorkDir:   os.Getenv("BOT_WORK_DIR"),
		Storage:   loadStorage(),
		Logging:   loadLogging(),
	}
	if c.PredictTimeout, err = envDuration("PREDICT_TIMEOUT"); err != nil {
		return c, err
	}
	if c.UploadAck, err = envBool("BOT_UPLOAD_ACK", true); err != nil {
		return c, err
	}
	if c.SendAnnotated, err = envBool("BOT_SEND_ANNOTATED", false); err != nil {
		return c, err
	}
	c.WithDefaults()
	return c, nil
}

// LoadWorker reads the worker configuration from the environment
func LoadWorker() (Worker, error) {
	var err error
	c := Worker{
		HTTPAddr:        os.Getenv("WORKER_HTTP_ADDR"),
		ResultStore:     os.Getenv("RESULT_STORE"),
		MongoURI:        os.Getenv("MONGO_URI"),
		MongoDatabase:   os.Getenv("MONGO_DATABASE"),
		MongoCollection: os.Getenv("MONGO_COLLECTION"),
		PostgresURL:     os.Getenv("POSTGRES_URL"),
		Detector:        os.Getenv("DETECTOR"),
		YOLODir:         os.Getenv("YOLO_DIR"),
		YOLOWeights:     os.Getenv("YOLO_WEIGHTS"),
		YOLOData:        os.Getenv("YOLO_DATA"),
		PythonBin:       os.Getenv("PYTHON_BIN"),
		RemoteModelURL:  os.Getenv("REMOTE_MODEL_URL"),
		LabelsFile:      os.Getenv("LABELS_FILE"),
		ProjectDir:      os.Getenv("PROJECT_DIR"),
		DownloadDir:     os.Getenv("DOWNLOAD_DIR"),
		Storage:         loadStorage(),
		Logging:         loadLogging(),
	}
	if c.KeepWorkspace, err = envBool("KEEP_WORKSPACE", false); err != nil {
		return c, err
	}
	c.WithDefaults()
	return c, nil
}

func loadStorage() Storage {
	return Storage{
		Backend:  strings.ToLower(os.Getenv("STORAGE_BACKEND")),
		Bucket:   os.Getenv("BUCKET_NAME"),
		Dir:      os.Getenv("STORAGE_DIR"),
		Region:   os.Getenv("AWS_REGION"),
		Endpoint: os.Getenv("S3_ENDPOINT"),
	}
}

func loadLogging() Logging {
	return Logging{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	}
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envDuration(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
