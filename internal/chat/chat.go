// Package chat implements the photo-to-detection conversation flow,
// independent of the messaging platform that delivers the messages.
package chat

import (
	"context"

	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

// PhotoVariant is one resolution of an inbound photo
type PhotoVariant struct {
	FileID   string
	Width    int
	Height   int
	FileSize int
}

// InboundMessage is a chat message reduced to what the front end needs
type InboundMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Photos    []PhotoVariant
}

// HasPhoto reports whether the message carries a photo
func (m InboundMessage) HasPhoto() bool {
	return len(m.Photos) > 0
}

// LargestPhoto returns the variant with the most pixels. Ties go to the
// larger file, then to the later entry.
func (m InboundMessage) LargestPhoto() (PhotoVariant, bool) {
	if len(m.Photos) == 0 {
		return PhotoVariant{}, false
	}
	best := m.Photos[0]
	for _, p := range m.Photos[1:] {
		pa, ba := p.Width*p.Height, best.Width*best.Height
		if pa > ba || (pa == ba && p.FileSize >= best.FileSize) {
			best = p
		}
	}
	return best, true
}

// Transport sends replies and fetches attachments on the chat platform
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendTextWithQuote(ctx context.Context, chatID int64, text string, quotedMsgID int) error
	SendPhoto(ctx context.Context, chatID int64, imgPath string, quotedMsgID int) error

	// DownloadFile saves the attachment into dir and returns the local path
	DownloadFile(ctx context.Context, fileID, dir string) (string, error)
}

// ObjectStore moves files between local disk and the object store
type ObjectStore interface {
	Upload(ctx context.Context, localPath, key string) error
	Download(ctx context.Context, key, localPath string) error
}

// Predictor requests object detection for a stored image
type Predictor interface {
	Predict(ctx context.Context, imgName string) (*detection.PredictResponse, error)
}
