package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-detection-pipeline/internal/metrics"
	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

// DefaultTimeout bounds a detection request when Options.Timeout is unset
const DefaultTimeout = 60 * time.Second

// Options tunes FrontEnd behavior
type Options struct {
	// UploadAck sends a confirmation once the photo is in the object store
	UploadAck bool

	// SendAnnotated replies with the annotated image after the count report
	SendAnnotated bool

	// WorkDir holds per-message scratch directories
	WorkDir string

	// Timeout bounds the call to the detection service
	Timeout time.Duration
}

// FrontEnd turns inbound photos into detection reports
type FrontEnd struct {
	transport Transport
	store     ObjectStore
	predictor Predictor
	opts      Options
	logger    *slog.Logger
	metrics   *metrics.Bot
}

// NewFrontEnd creates a new chat front end
func NewFrontEnd(transport Transport, store ObjectStore, predictor Predictor, opts Options, logger *slog.Logger, m *metrics.Bot) *FrontEnd {
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FrontEnd{
		transport: transport,
		store:     store,
		predictor: predictor,
		opts:      opts,
		logger:    logger,
		metrics:   m,
	}
}

// HandleMessage processes one inbound message. Failures are reported to the
// user and logged; nothing is returned to the caller.
func (f *FrontEnd) HandleMessage(ctx context.Context, msg InboundMessage) {
	log := f.logger.With("chat_id", msg.ChatID, "message_id", msg.MessageID)
	log.Info("Incoming message", "has_photo", msg.HasPhoto())

	photo, ok := msg.LargestPhoto()
	if !ok {
		f.reply(ctx, log, msg.ChatID, MsgSendPhoto)
		f.metrics.ObserveMessage(metrics.OutcomeNoPhoto)
		return
	}

	dir, err := os.MkdirTemp(f.opts.WorkDir, "photo-")
	if err != nil {
		log.Error("Failed to create work directory", "error", err)
		f.reply(ctx, log, msg.ChatID, fmt.Sprintf(MsgDownloadFailed, err))
		f.metrics.ObserveMessage(metrics.OutcomeRetrieval)
		return
	}
	defer os.RemoveAll(dir)

	// Step 1: Download the photo from the chat platform
	localPath, err := f.transport.DownloadFile(ctx, photo.FileID, dir)
	if err != nil {
		err = fmt.Errorf("%w: %w", detection.ErrRetrieval, err)
		log.Error("Failed to download photo", "file_id", photo.FileID, "error", err)
		f.reply(ctx, log, msg.ChatID, fmt.Sprintf(MsgDownloadFailed, err))
		f.metrics.ObserveMessage(metrics.OutcomeRetrieval)
		return
	}

	// Step 2: Upload to the object store under a per-request key
	key := imageKey(msg.ChatID, localPath)
	log = log.With("image", key)
	if err := f.store.Upload(ctx, localPath, key); err != nil {
		log.Error("Error uploading image", "error", err)
		if errors.Is(err, detection.ErrCredentialsMissing) {
			f.reply(ctx, log, msg.ChatID, MsgCredentialsMissing)
			f.metrics.ObserveMessage(metrics.OutcomeCredentials)
			return
		}
		f.reply(ctx, log, msg.ChatID, fmt.Sprintf(MsgUploadFailed, err))
		f.metrics.ObserveMessage(metrics.OutcomeUpload)
		return
	}
	log.Info("Image uploaded")
	if f.opts.UploadAck {
		f.reply(ctx, log, msg.ChatID, MsgUploaded)
	}

	// Step 3: Request detection
	pctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	start := time.Now()
	result, err := f.predictor.Predict(pctx, key)
	cancel()
	f.metrics.ObservePredictLatency(time.Since(start))
	if err != nil {
		log.Error("Prediction request failed", "error", err)
		var se *detection.StatusError
		if errors.As(err, &se) {
			f.reply(ctx, log, msg.ChatID, fmt.Sprintf(MsgServiceStatus, se.StatusCode))
		} else {
			f.reply(ctx, log, msg.ChatID, fmt.Sprintf(MsgServiceUnreachable, err))
		}
		f.metrics.ObserveMessage(metrics.OutcomeInference)
		return
	}
	log.Info("Prediction received", "prediction_id", result.PredictionID)

	// Step 4: Report counts as a reply to the photo
	if result.Labels == nil || len(*result.Labels) == 0 {
		f.replyQuoted(ctx, log, msg, MsgNothingDetected)
		f.metrics.ObserveMessage(metrics.OutcomeNoDetections)
	} else {
		f.replyQuoted(ctx, log, msg, detection.NewCountReport(*result.Labels).String())
		f.metrics.ObserveMessage(metrics.OutcomeSuccess)
	}

	// Step 5: Optionally send back the annotated image
	if f.opts.SendAnnotated && result.PredictedImgKey != "" {
		f.sendAnnotated(ctx, log, msg, dir, result.PredictedImgKey)
	}
}

func (f *FrontEnd) sendAnnotated(ctx context.Context, log *slog.Logger, msg InboundMessage, dir, key string) {
	local := filepath.Join(dir, "annotated"+filepath.Ext(key))
	if err := f.store.Download(ctx, key, local); err != nil {
		log.Error("Failed to download annotated image", "key", key, "error", err)
		f.reply(ctx, log, msg.ChatID, MsgAnnotatedUnavailable)
		return
	}
	if err := f.transport.SendPhoto(ctx, msg.ChatID, local, msg.MessageID); err != nil {
		log.Error("Failed to send annotated image", "error", err)
	}
}

func (f *FrontEnd) reply(ctx context.Context, log *slog.Logger, chatID int64, text string) {
	if err := f.transport.SendText(ctx, chatID, text); err != nil {
		log.Error("Failed to send reply", "error", err)
	}
}

func (f *FrontEnd) replyQuoted(ctx context.Context, log *slog.Logger, msg InboundMessage, text string) {
	if err := f.transport.SendTextWithQuote(ctx, msg.ChatID, text, msg.MessageID); err != nil {
		log.Error("Failed to send reply", "error", err)
	}
}

// imageKey builds a fresh object key that keeps the file extension
func imageKey(chatID int64, localPath string) string {
	ext := filepath.Ext(localPath)
	if ext == "" {
		ext = ".jpg"
	}
	return strconv.FormatInt(chatID, 10) + "-" + uuid.New().String() + ext
}
