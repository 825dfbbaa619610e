package detector

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

func TestRemoteBoxes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile failed: %v", err)
			http.Error(w, "no file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "photo.png" || len(data) == 0 {
			t.Errorf("unexpected upload %q (%d bytes)", header.Filename, len(data))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"detections": []detection.Detection{
				{Class: "dog", CX: 0.5, CY: 0.5, Width: 0.3, Height: 0.3},
			},
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	src := writeTestPNG(t, dir, "photo.png", 32, 32)

	dets, err := NewRemote(srv.URL, 5*time.Second).Boxes(context.Background(), src)
	if err != nil {
		t.Fatalf("Boxes failed: %v", err)
	}
	if len(dets) != 1 || dets[0].Class != "dog" {
		t.Errorf("unexpected detections: %+v", dets)
	}

	ws := NewWorkspace(dir, "pred", "photo.png")
	if err := NewRemoteDetector(srv.URL, 5*time.Second, COCO(), nil).Detect(context.Background(), src, ws); err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if _, err := os.Stat(ws.LabelsPath()); err != nil {
		t.Errorf("labels file missing: %v", err)
	}
}

func TestRemoteBoxesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := writeTestPNG(t, t.TempDir(), "photo.png", 8, 8)
	if _, err := NewRemote(srv.URL, time.Second).Boxes(context.Background(), src); err == nil {
		t.Error("expected error for 503 response")
	}

	if _, err := NewRemote(srv.URL, time.Second).Boxes(context.Background(), filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing image")
	}
}
