package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-detection-pipeline/internal/chat"
	"github.com/tendant/simple-detection-pipeline/internal/config"
	"github.com/tendant/simple-detection-pipeline/internal/handlers"
	"github.com/tendant/simple-detection-pipeline/internal/logging"
	"github.com/tendant/simple-detection-pipeline/internal/metrics"
	"github.com/tendant/simple-detection-pipeline/internal/server"
	"github.com/tendant/simple-detection-pipeline/internal/telegram"
	"github.com/tendant/simple-detection-pipeline/pkg/client"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	config.LoadDotEnv()

	cfg, err := config.LoadBot()
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

func newRootCmd(cfg *config.Bot) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "detection-bot",
		Short:        "Telegram front end for the object detection service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), *cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Token, "token", cfg.Token, "Telegram bot token (TELEGRAM_TOKEN)")
	f.StringVar(&cfg.AppURL, "app-url", cfg.AppURL, "public base URL for the webhook (TELEGRAM_APP_URL)")
	f.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "listen address (BOT_HTTP_ADDR)")
	f.StringVar(&cfg.Mode, "mode", cfg.Mode, "webhook or polling (BOT_MODE)")
	f.StringVar(&cfg.WorkerURL, "yolo-url", cfg.WorkerURL, "detection worker base URL (YOLO_URL)")
	f.DurationVar(&cfg.PredictTimeout, "predict-timeout", cfg.PredictTimeout, "timeout for a detection request (PREDICT_TIMEOUT)")
	f.StringVar(&cfg.WorkDir, "work-dir", cfg.WorkDir, "scratch directory for downloaded photos (BOT_WORK_DIR)")
	f.BoolVar(&cfg.UploadAck, "upload-ack", cfg.UploadAck, "confirm uploads before detection (BOT_UPLOAD_ACK)")
	f.BoolVar(&cfg.SendAnnotated, "send-annotated", cfg.SendAnnotated, "reply with the annotated image (BOT_SEND_ANNOTATED)")
	config.BindStorageFlags(f, &cfg.Storage)
	config.BindLoggingFlags(f, &cfg.Logging)
	return cmd
}

func run(ctx context.Context, cfg config.Bot) error {
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

	bot, err := telegram.New(telegram.Config{Token: cfg.Token}, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	frontEnd := chat.NewFrontEnd(bot, store, client.NewWithTimeout(cfg.WorkerURL, cfg.PredictTimeout), chat.Options{
		UploadAck:     cfg.UploadAck,
		SendAnnotated: cfg.SendAnnotated,
		WorkDir:       cfg.WorkDir,
		Timeout:       cfg.PredictTimeout,
	}, logger, metrics.NewBot(reg))
	dispatcher := telegram.NewDispatcher(frontEnd.HandleMessage, logger)
	defer dispatcher.Wait()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HandleHealth)
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serve := func(ctx context.Context) error {
		return server.Run(ctx, srv, logger)
	}

	switch cfg.Mode {
	case config.ModeWebhook:
		mux.Handle(bot.WebhookPath(), telegram.NewWebhookHandler(bot.API(), dispatcher, logger))
		if err := bot.RegisterWebhook(cfg.AppURL); err != nil {
			return err
		}
	case config.ModePolling:
		if err := bot.DeleteWebhook(); err != nil {
			return err
		}
		logger.Info("✓ Polling for updates")
		return withPoller(ctx, func(ctx context.Context) {
			telegram.Poll(ctx, bot.API(), dispatcher)
		}, serve)
	}

	return serve(ctx)
}

// withPoller runs poll alongside serve. The poller is cancelled and drained
// before withPoller returns, including when serve fails before ctx is done.
func withPoller(ctx context.Context, poll func(context.Context), serve func(context.Context) error) error {
	pollCtx, cancelPoll := context.WithCancel(ctx)
	polling := make(chan struct{})
	go func() {
		defer close(polling)
		poll(pollCtx)
	}()
	defer func() {
		cancelPoll()
		<-polling
	}()

	return serve(ctx)
}
