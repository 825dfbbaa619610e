package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tendant/simple-detection-pipeline/internal/chat"
)

// ToInbound extracts the message carried by an update. Updates without a
// message (edits, callbacks, channel posts) report false.
func ToInbound(update tgbotapi.Update) (chat.InboundMessage, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return chat.InboundMessage{}, false
	}

	in := chat.InboundMessage{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
	}
	for _, p := range msg.Photo {
		in.Photos = append(in.Photos, chat.PhotoVariant{
			FileID:   p.FileID,
			Width:    p.Width,
			Height:   p.Height,
			FileSize: p.FileSize,
		})
	}
	return in, true
}
