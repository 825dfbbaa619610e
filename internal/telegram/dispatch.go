package telegram

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tendant/simple-detection-pipeline/internal/chat"
)

// MessageHandler processes one inbound message
type MessageHandler func(ctx context.Context, msg chat.InboundMessage)

// Dispatcher runs a MessageHandler per update on its own goroutine
type Dispatcher struct {
	handle MessageHandler
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(handle MessageHandler, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{handle: handle, logger: logger}
}

// Dispatch starts handling update in the background
func (d *Dispatcher) Dispatch(ctx context.Context, update tgbotapi.Update) {
	msg, ok := ToInbound(update)
	if !ok {
		d.logger.Debug("Ignoring update without message", "update_id", update.UpdateID)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.handle(ctx, msg)
	}()
}

// Wait blocks until every dispatched message has been handled
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// WebhookHandler accepts updates posted by Telegram
type WebhookHandler struct {
	api        *tgbotapi.BotAPI
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(api *tgbotapi.BotAPI, dispatcher *Dispatcher, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{api: api, dispatcher: dispatcher, logger: logger}
}

// ServeHTTP acknowledges the update at once and handles it in the background
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	update, err := h.api.HandleUpdate(r)
	if err != nil {
		h.logger.Warn("Invalid webhook update", "error", err)
		http.Error(w, "Invalid update", http.StatusBadRequest)
		return
	}

	h.dispatcher.Dispatch(context.WithoutCancel(r.Context()), *update)
	w.WriteHeader(http.StatusOK)
}

// Poll reads updates with long polling until ctx is done
func Poll(ctx context.Context, api *tgbotapi.BotAPI, dispatcher *Dispatcher) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			dispatcher.Dispatch(context.WithoutCancel(ctx), update)
		}
	}
}
