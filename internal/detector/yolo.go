package detector

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// YOLOv5Config points at a yolov5 checkout and the model to run
type YOLOv5Config struct {
	// Dir is the yolov5 repository containing detect.py
	Dir string

	// Python is the interpreter used to run detect.py. Defaults to "python3"
	Python string

	// Weights is the model weights file, relative to Dir or absolute
	Weights string

	// Data is the dataset YAML holding the class names
	Data string
}

// YOLOv5 runs yolov5's detect.py as a subprocess. detect.py writes the
// annotated image to <project>/<name>/<image> and the boxes to
// <project>/<name>/labels/<stem>.txt, which lines up with Workspace.
type YOLOv5 struct {
	cfg    YOLOv5Config
	logger *slog.Logger
}

// NewYOLOv5 creates a subprocess detector
func NewYOLOv5(cfg YOLOv5Config, logger *slog.Logger) (*YOLOv5, error) {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.Weights == "" {
		cfg.Weights = "yolov5s.pt"
	}
	if cfg.Data == "" {
		cfg.Data = "data/coco128.yaml"
	}
	if _, err := os.Stat(filepath.Join(cfg.Dir, "detect.py")); err != nil {
		return nil, fmt.Errorf("detect.py not found in %q: %w", cfg.Dir, err)
	}
	return &YOLOv5{cfg: cfg, logger: logger}, nil
}

// Detect runs detect.py on imagePath and directs its outputs into ws
func (y *YOLOv5) Detect(ctx context.Context, imagePath string, ws Workspace) error {
	source, err := filepath.Abs(imagePath)
	if err != nil {
		return err
	}
	wsDir, err := filepath.Abs(ws.Dir)
	if err != nil {
		return err
	}

	cmd := newSafeCommand(ctx, y.cfg.Python,
		"detect.py",
		"--weights", y.cfg.Weights,
		"--data", y.cfg.Data,
		"--source", source,
		"--project", filepath.Dir(wsDir),
		"--name", filepath.Base(wsDir),
		"--save-txt",
		"--exist-ok",
	)
	cmd.Dir = y.cfg.Dir

	y.logger.Debug("running yolov5", "args", cmd.Args, "dir", cmd.Dir)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("yolov5 detect failed: %w%s", err, cmd.stderrTail())
	}

	return nil
}

// safeCommand wraps exec.Cmd with a buffer catching stderr so a failing
// subprocess can be reported with its own output
type safeCommand struct {
	*exec.Cmd
	stderr *bytes.Buffer
}

func newSafeCommand(ctx context.Context, name string, args ...string) *safeCommand {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	return &safeCommand{Cmd: cmd, stderr: stderr}
}

// stderrTail returns the last lines of captured stderr, prefixed for appending to an error
func (s *safeCommand) stderrTail() string {
	out := strings.TrimSpace(s.stderr.String())
	if out == "" {
		return ""
	}
	lines := strings.Split(out, "\n")
	if len(lines) > 10 {
		lines = lines[len(lines)-10:]
	}
	return "\n" + strings.Join(lines, "\n")
}
