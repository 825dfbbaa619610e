package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tendant/simple-detection-pipeline/internal/metrics"
	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

type sentMessage struct {
	ChatID int64
	Text   string
	Quote  int
	Photo  string
}

type fakeTransport struct {
	mu          sync.Mutex
	sent        []sentMessage
	downloads   int
	downloadErr error
}

func (t *fakeTransport) SendText(ctx context.Context, chatID int64, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (t *fakeTransport) SendTextWithQuote(ctx context.Context, chatID int64, text string, quotedMsgID int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentMessage{ChatID: chatID, Text: text, Quote: quotedMsgID})
	return nil
}

func (t *fakeTransport) SendPhoto(ctx context.Context, chatID int64, imgPath string, quotedMsgID int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := os.Stat(imgPath); err != nil {
		return err
	}
	t.sent = append(t.sent, sentMessage{ChatID: chatID, Photo: imgPath, Quote: quotedMsgID})
	return nil
}

func (t *fakeTransport) DownloadFile(ctx context.Context, fileID, dir string) (string, error) {
	t.mu.Lock()
	t.downloads++
	t.mu.Unlock()
	if t.downloadErr != nil {
		return "", t.downloadErr
	}
	path := filepath.Join(dir, "file_"+fileID+".jpg")
	return path, os.WriteFile(path, []byte("jpeg:"+fileID), 0644)
}

func (t *fakeTransport) texts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []string
	for _, m := range t.sent {
		if m.Text != "" {
			out = append(out, m.Text)
		}
	}
	return out
}

type fakeStore struct {
	uploadErr   error
	downloadErr error
	uploads     []string
	objects     map[string][]byte
}

func (s *fakeStore) Upload(ctx context.Context, localPath, key string) error {
	s.uploads = append(s.uploads, key)
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = data
	return nil
}

func (s *fakeStore) Download(ctx context.Context, key, localPath string) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	data, ok := s.objects[key]
	if !ok {
		return fmt.Errorf("object not found: %s", key)
	}
	return os.WriteFile(localPath, data, 0644)
}

type fakePredictor struct {
	resp  *detection.PredictResponse
	err   error
	calls []string
}

func (p *fakePredictor) Predict(ctx context.Context, imgName string) (*detection.PredictResponse, error) {
	p.calls = append(p.calls, imgName)
	if p.err != nil {
		return nil, p.err
	}
	return p.resp, nil
}

func labels(classes ...string) *[]detection.Detection {
	out := make([]detection.Detection, 0, len(classes))
	for _, c := range classes {
		out = append(out, detection.Detection{Class: c, CX: 0.5, CY: 0.5, Width: 0.1, Height: 0.1})
	}
	return &out
}

var photoMessage = InboundMessage{
	ChatID:    42,
	MessageID: 7,
	Photos: []PhotoVariant{
		{FileID: "small", Width: 90, Height: 60, FileSize: 1000},
		{FileID: "large", Width: 1280, Height: 853, FileSize: 90000},
		{FileID: "medium", Width: 320, Height: 213, FileSize: 9000},
	},
}

type harness struct {
	transport *fakeTransport
	store     *fakeStore
	predictor *fakePredictor
	metrics   *metrics.Bot
	frontEnd  *FrontEnd
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	if opts.WorkDir == "" {
		opts.WorkDir = t.TempDir()
	}
	h := &harness{
		transport: &fakeTransport{},
		store:     &fakeStore{},
		predictor: &fakePredictor{resp: &detection.PredictResponse{PredictionID: "p1"}},
		metrics:   metrics.NewBot(prometheus.NewRegistry()),
	}
	h.frontEnd = NewFrontEnd(h.transport, h.store, h.predictor, opts, nil, h.metrics)
	return h
}

func TestHandleMessageWithoutPhoto(t *testing.T) {
	h := newHarness(t, Options{})
	h.frontEnd.HandleMessage(context.Background(), InboundMessage{ChatID: 42, MessageID: 1, Text: "hello"})

	if got := h.transport.texts(); len(got) != 1 || got[0] != MsgSendPhoto {
		t.Fatalf("replies = %q, want [%q]", got, MsgSendPhoto)
	}
	if h.transport.downloads != 0 || len(h.store.uploads) != 0 || len(h.predictor.calls) != 0 {
		t.Errorf("downloads=%d uploads=%d predictions=%d, want all zero",
			h.transport.downloads, len(h.store.uploads), len(h.predictor.calls))
	}
	if got := testutil.ToFloat64(h.metrics.Messages().WithLabelValues(metrics.OutcomeNoPhoto)); got != 1 {
		t.Errorf("no_photo metric = %v", got)
	}
}

func TestHandleMessageReportsCounts(t *testing.T) {
	h := newHarness(t, Options{UploadAck: true})
	h.predictor.resp.Labels = labels("person", "dog", "person")

	h.frontEnd.HandleMessage(context.Background(), photoMessage)

	want := []string{MsgUploaded, "Detected objects:\nperson: 2\ndog: 1\n"}
	got := h.transport.texts()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("replies = %q, want %q", got, want)
	}
	last := h.transport.sent[len(h.transport.sent)-1]
	if last.Quote != photoMessage.MessageID {
		t.Errorf("report quotes message %d, want %d", last.Quote, photoMessage.MessageID)
	}

	if len(h.store.uploads) != 1 {
		t.Fatalf("uploads = %v", h.store.uploads)
	}
	key := h.store.uploads[0]
	if !strings.HasPrefix(key, "42-") || !strings.HasSuffix(key, ".jpg") {
		t.Errorf("key = %q, want 42-<uuid>.jpg", key)
	}
	if string(h.store.objects[key]) != "jpeg:large" {
		t.Errorf("uploaded %q, want the largest variant", h.store.objects[key])
	}
	if len(h.predictor.calls) != 1 || h.predictor.calls[0] != key {
		t.Errorf("predict calls = %v, want [%s]", h.predictor.calls, key)
	}
}

func TestHandleMessageKeysAreUnique(t *testing.T) {
	h := newHarness(t, Options{})
	h.predictor.resp.Labels = labels("cat")

	h.frontEnd.HandleMessage(context.Background(), photoMessage)
	h.frontEnd.HandleMessage(context.Background(), photoMessage)

	if len(h.store.uploads) != 2 || h.store.uploads[0] == h.store.uploads[1] {
		t.Errorf("uploads = %v, want two distinct keys", h.store.uploads)
	}
}

func TestHandleMessageNothingDetected(t *testing.T) {
	tests := []struct {
		name   string
		labels *[]detection.Detection
	}{
		{"labels absent", nil},
		{"labels empty", labels()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.predictor.resp.Labels = tt.labels

			h.frontEnd.HandleMessage(context.Background(), photoMessage)

			if got := h.transport.texts(); len(got) != 1 || got[0] != MsgNothingDetected {
				t.Errorf("replies = %q, want [%q]", got, MsgNothingDetected)
			}
		})
	}
}

func TestHandleMessageFailures(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(h *harness)
		wantReply   string
		wantPredict bool
		wantOutcome string
	}{
		{
			name: "credentials missing",
			setup: func(h *harness) {
				h.store.uploadErr = fmt.Errorf("upload: %w", detection.ErrCredentialsMissing)
			},
			wantReply:   MsgCredentialsMissing,
			wantOutcome: metrics.OutcomeCredentials,
		},
		{
			name: "other upload failure",
			setup: func(h *harness) {
				h.store.uploadErr = errors.New("bucket does not exist")
			},
			wantReply:   "Error uploading image to the object store: bucket does not exist",
			wantOutcome: metrics.OutcomeUpload,
		},
		{
			name: "photo download failure",
			setup: func(h *harness) {
				h.transport.downloadErr = errors.New("file is too big")
			},
			wantReply:   "Error downloading your photo: retrieval failed: file is too big",
			wantOutcome: metrics.OutcomeRetrieval,
		},
		{
			name: "worker returns 404",
			setup: func(h *harness) {
				h.predictor.err = &detection.StatusError{StatusCode: 404, Body: "prediction result not found"}
			},
			wantReply:   "Error: detection service returned status code 404",
			wantPredict: true,
			wantOutcome: metrics.OutcomeInference,
		},
		{
			name: "worker unreachable",
			setup: func(h *harness) {
				h.predictor.err = fmt.Errorf("%w: connection refused", detection.ErrInferenceTransport)
			},
			wantReply:   "Error communicating with the detection service: inference request failed: connection refused",
			wantPredict: true,
			wantOutcome: metrics.OutcomeInference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			tt.setup(h)

			h.frontEnd.HandleMessage(context.Background(), photoMessage)

			if got := h.transport.texts(); len(got) != 1 || got[0] != tt.wantReply {
				t.Errorf("replies = %q, want [%q]", got, tt.wantReply)
			}
			if called := len(h.predictor.calls) > 0; called != tt.wantPredict {
				t.Errorf("predictor called = %v, want %v", called, tt.wantPredict)
			}
			if got := testutil.ToFloat64(h.metrics.Messages().WithLabelValues(tt.wantOutcome)); got != 1 {
				t.Errorf("%s metric = %v, want 1", tt.wantOutcome, got)
			}
		})
	}
}

func TestHandleMessageSendsAnnotated(t *testing.T) {
	h := newHarness(t, Options{SendAnnotated: true})
	h.predictor.resp.Labels = labels("person")
	h.predictor.resp.PredictedImgKey = "predicted/whatever.jpg"
	h.store.objects = map[string][]byte{"predicted/whatever.jpg": []byte("annotated")}

	h.frontEnd.HandleMessage(context.Background(), photoMessage)

	last := h.transport.sent[len(h.transport.sent)-1]
	if last.Photo == "" || last.Quote != photoMessage.MessageID {
		t.Fatalf("last message = %+v, want a photo reply", last)
	}
}

func TestHandleMessageAnnotatedUnavailable(t *testing.T) {
	h := newHarness(t, Options{SendAnnotated: true})
	h.predictor.resp.Labels = labels("person")
	h.predictor.resp.PredictedImgKey = "predicted/missing.jpg"

	h.frontEnd.HandleMessage(context.Background(), photoMessage)

	got := h.transport.texts()
	if len(got) != 2 || got[1] != MsgAnnotatedUnavailable {
		t.Errorf("replies = %q", got)
	}
}

func TestHandleMessageRemovesLocalFiles(t *testing.T) {
	work := t.TempDir()
	h := newHarness(t, Options{WorkDir: work})
	h.predictor.resp.Labels = labels("person")

	h.frontEnd.HandleMessage(context.Background(), photoMessage)

	entries, err := os.ReadDir(work)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir has %d leftover entries", len(entries))
	}
}

func TestLargestPhoto(t *testing.T) {
	tests := []struct {
		name   string
		photos []PhotoVariant
		want   string
	}{
		{"most pixels", photoMessage.Photos, "large"},
		{"tie on pixels uses size", []PhotoVariant{{FileID: "a", Width: 10, Height: 10, FileSize: 5}, {FileID: "b", Width: 10, Height: 10, FileSize: 3}}, "a"},
		{"full tie takes last", []PhotoVariant{{FileID: "a", Width: 10, Height: 10}, {FileID: "b", Width: 10, Height: 10}}, "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := InboundMessage{Photos: tt.photos}.LargestPhoto()
			if !ok || got.FileID != tt.want {
				t.Errorf("LargestPhoto() = %q, want %q", got.FileID, tt.want)
			}
		})
	}

	if _, ok := (InboundMessage{}).LargestPhoto(); ok {
		t.Error("LargestPhoto() on a text message returned ok")
	}
}
