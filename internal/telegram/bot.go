// Package telegram connects the chat front end to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Config holds Bot API connection settings
type Config struct {
	Token string

	// APIEndpoint and FileEndpoint override the public Bot API URLs.
	// Both are format strings taking the token and the method or file path.
	APIEndpoint  string
	FileEndpoint string

	HTTPClient *http.Client
}

// WithDefaults fills in default values for optional fields
func (c *Config) WithDefaults() {
	if c.APIEndpoint == "" {
		c.APIEndpoint = tgbotapi.APIEndpoint
	}
	if c.FileEndpoint == "" {
		c.FileEndpoint = tgbotapi.FileEndpoint
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
}

// Bot implements chat.Transport on the Telegram Bot API
type Bot struct {
	api          *tgbotapi.BotAPI
	fileEndpoint string
	httpClient   *http.Client
	logger       *slog.Logger
}

// New connects to the Bot API and verifies the token
func New(cfg Config, logger *slog.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	cfg.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	logger.Info("Telegram Bot information", "id", api.Self.ID, "username", api.Self.UserName)

	return &Bot{
		api:          api,
		fileEndpoint: cfg.FileEndpoint,
		httpClient:   cfg.HTTPClient,
		logger:       logger,
	}, nil
}

// API exposes the underlying client
func (b *Bot) API() *tgbotapi.BotAPI {
	return b.api
}

// WebhookPath is the path Telegram posts updates to
func (b *Bot) WebhookPath() string {
	return "/" + b.api.Token + "/"
}

// RegisterWebhook removes any existing webhook and points Telegram at appURL
func (b *Bot) RegisterWebhook(appURL string) error {
	if err := b.DeleteWebhook(); err != nil {
		return err
	}

	wh, err := tgbotapi.NewWebhook(strings.TrimRight(appURL, "/") + b.WebhookPath())
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	b.logger.Info("Webhook registered", "url", strings.TrimRight(appURL, "/")+"/<token>/")
	return nil
}

// DeleteWebhook removes the registered webhook, if any
func (b *Bot) DeleteWebhook() error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to remove webhook: %w", err)
	}
	return nil
}

// SendText sends a plain text message
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendTextWithQuote sends text as a reply to quotedMsgID
func (b *Bot) SendTextWithQuote(ctx context.Context, chatID int64, text string, quotedMsgID int) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = quotedMsgID
	_, err := b.api.Send(msg)
	return err
}

// SendPhoto uploads a local image. quotedMsgID of zero sends it unthreaded.
func (b *Bot) SendPhoto(ctx context.Context, chatID int64, imgPath string, quotedMsgID int) error {
	if _, err := os.Stat(imgPath); err != nil {
		return fmt.Errorf("image path doesn't exist: %w", err)
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(imgPath))
	photo.ReplyToMessageID = quotedMsgID
	_, err := b.api.Send(photo)
	return err
}

// DownloadFile fetches a file by id into dir, keeping Telegram's file name
func (b *Bot) DownloadFile(ctx context.Context, fileID, dir string) (string, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("failed to get file info: %w", err)
	}

	url := fmt.Sprintf(b.fileEndpoint, b.api.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download file: status %d", resp.StatusCode)
	}

	name := path.Base(file.FilePath)
	if name == "." || name == "/" {
		name = fileID
	}
	localPath := filepath.Join(dir, name)
	out, err := os.Create(localPath)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(localPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return localPath, nil
}
