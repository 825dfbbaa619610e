package detector

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// fakeDetectScript mimics the output layout of yolov5's detect.py
const fakeDetectScript = `
while [ $# -gt 0 ]; do
  case "$1" in
    --source) src="$2"; shift ;;
    --project) proj="$2"; shift ;;
    --name) name="$2"; shift ;;
  esac
  shift
done
out="$proj/$name"
mkdir -p "$out/labels"
cp "$src" "$out/"
base=$(basename "$src")
echo "0 0.5 0.5 0.2 0.2" > "$out/labels/${base%.*}.txt"
echo "16 0.3 0.3 0.1 0.1" >> "$out/labels/${base%.*}.txt"
`

func TestYOLOv5Detect(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	yoloDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(yoloDir, "detect.py"), []byte(fakeDetectScript), 0644); err != nil {
		t.Fatal(err)
	}

	det, err := NewYOLOv5(YOLOv5Config{Dir: yoloDir, Python: sh}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewYOLOv5 failed: %v", err)
	}

	work := t.TempDir()
	src := writeTestPNG(t, work, "42-abc.png", 8, 8)
	ws := NewWorkspace(filepath.Join(work, "static", "data"), "pred-1", "42-abc.png")

	if err := det.Detect(context.Background(), src, ws); err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if _, err := os.Stat(ws.AnnotatedPath()); err != nil {
		t.Errorf("annotated image missing: %v", err)
	}
	labels, err := ParseLabels(ws.LabelsPath(), COCO())
	if err != nil {
		t.Fatalf("ParseLabels failed: %v", err)
	}
	if len(labels) != 2 || labels[0].Class != "person" || labels[1].Class != "dog" {
		t.Errorf("unexpected labels: %+v", labels)
	}
}

func TestYOLOv5Failure(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	yoloDir := t.TempDir()
	script := "echo 'CUDA out of memory' >&2\nexit 1\n"
	if err := os.WriteFile(filepath.Join(yoloDir, "detect.py"), []byte(script), 0644); err != nil {
		t.Fatal(err)
	}

	det, err := NewYOLOv5(YOLOv5Config{Dir: yoloDir, Python: sh}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}

	err = det.Detect(context.Background(), "x.png", NewWorkspace(t.TempDir(), "p", "x.png"))
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); !strings.Contains(got, "CUDA out of memory") {
		t.Errorf("error should carry stderr, got %q", got)
	}
}

func TestNewYOLOv5MissingScript(t *testing.T) {
	if _, err := NewYOLOv5(YOLOv5Config{Dir: t.TempDir()}, slog.Default()); err == nil {
		t.Error("expected error when detect.py is missing")
	}
}
