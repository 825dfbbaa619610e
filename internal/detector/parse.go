package detector

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

// ParseLabels reads a YOLO labels file. A missing file yields an error
// wrapping detection.ErrNotFound.
func ParseLabels(path string, table *LabelTable) ([]detection.Detection, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", detection.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open labels file: %w", err)
	}
	defer f.Close()

	labels := []detection.Detection{}
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		d, err := parseLine(line, table)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filepath.Base(path), lineNum, err)
		}
		labels = append(labels, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}

	return labels, nil
}

// parseLine parses "class cx cy w h"; a trailing confidence column is ignored
func parseLine(line string, table *LabelTable) (detection.Detection, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return detection.Detection{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	classIdx, err := strconv.Atoi(fields[0])
	if err != nil {
		return detection.Detection{}, fmt.Errorf("invalid class index %q", fields[0])
	}
	class, ok := table.Name(classIdx)
	if !ok {
		return detection.Detection{}, fmt.Errorf("unknown class index %d", classIdx)
	}

	var coords [4]float64
	for i := range coords {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return detection.Detection{}, fmt.Errorf("invalid coordinate %q", fields[i+1])
		}
		coords[i] = v
	}

	return detection.Detection{
		Class:  class,
		CX:     coords[0],
		CY:     coords[1],
		Width:  coords[2],
		Height: coords[3],
	}, nil
}

// WriteLabels writes detections in YOLO labels format
func WriteLabels(path string, table *LabelTable, dets []detection.Detection) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create labels directory: %w", err)
	}

	var b strings.Builder
	for _, d := range dets {
		idx, ok := table.Index(d.Class)
		if !ok {
			return fmt.Errorf("class %q is not in the label table", d.Class)
		}
		fmt.Fprintf(&b, "%d %.6f %.6f %.6f %.6f\n", idx, d.CX, d.CY, d.Width, d.Height)
	}

	return os.WriteFile(path, []byte(b.String()), 0644)
}
