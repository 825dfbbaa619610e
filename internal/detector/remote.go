package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

// Remote calls an external model server that accepts a multipart "file"
// upload and answers {"detections": [{"class", "cx", "cy", "width", "height"}]}
type Remote struct {
	url        string
	httpClient *http.Client
}

// NewRemote creates a remote model adapter
func NewRemote(url string, timeout time.Duration) *Remote {
	return &Remote{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewRemoteDetector wraps a Remote model as a Detector
func NewRemoteDetector(url string, timeout time.Duration, table *LabelTable, logger *slog.Logger) Detector {
	return FromBoxes(NewRemote(url, timeout).Boxes, table, logger)
}

// Boxes sends the image to the model server and returns its detections
func (m *Remote) Boxes(ctx context.Context, imagePath string) ([]detection.Detection, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	// Build multipart request
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var result struct {
		Detections []detection.Detection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return result.Detections, nil
}
