package detector

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MaxClassIndex bounds the index map form of a dataset names section
const MaxClassIndex = 4095

// LabelTable maps class indices to human-readable labels
type LabelTable struct {
	names []string
	index map[string]int
}

// NewLabelTable builds a table from names ordered by class index
func NewLabelTable(names []string) *LabelTable {
	t := &LabelTable{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		if n == "" {
			continue
		}
		if _, dup := t.index[n]; !dup {
			t.index[n] = i
		}
	}
	return t
}

// Name resolves a class index
func (t *LabelTable) Name(i int) (string, bool) {
	if i < 0 || i >= len(t.names) || t.names[i] == "" {
		return "", false
	}
	return t.names[i], true
}

// Index resolves a label to its class index
func (t *LabelTable) Index(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Len returns the number of class slots
func (t *LabelTable) Len() int {
	return len(t.names)
}

// LoadLabelTable reads the names section of a YOLO dataset YAML file
func LoadLabelTable(path string) (*LabelTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read label file: %w", err)
	}
	return ParseLabelTable(data)
}

// ParseLabelTable accepts both the list form (names: [person, ...]) and the
// index map form (names: {0: person, ...}) of a dataset YAML
func ParseLabelTable(data []byte) (*LabelTable, error) {
	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse dataset yaml: %w", err)
	}

	switch doc.Names.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := doc.Names.Decode(&names); err != nil {
			return nil, fmt.Errorf("failed to decode names list: %w", err)
		}
		return NewLabelTable(names), nil

	case yaml.MappingNode:
		var byIndex map[int]string
		if err := doc.Names.Decode(&byIndex); err != nil {
			return nil, fmt.Errorf("failed to decode names map: %w", err)
		}
		highest := -1
		for i := range byIndex {
			if i < 0 {
				return nil, fmt.Errorf("negative class index %d", i)
			}
			if i > MaxClassIndex {
				return nil, fmt.Errorf("class index %d exceeds %d", i, MaxClassIndex)
			}
			if i > highest {
				highest = i
			}
		}
		names := make([]string, highest+1)
		for i, n := range byIndex {
			names[i] = n
		}
		return NewLabelTable(names), nil

	default:
		return nil, fmt.Errorf("dataset yaml has no names section")
	}
}

// COCO returns the 80-class COCO label table used by the stock yolov5 weights
func COCO() *LabelTable {
	return NewLabelTable(cocoNames)
}

var cocoNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat", "traffic light",
	"fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat", "dog", "horse", "sheep", "cow",
	"elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove", "skateboard", "surfboard",
	"tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse", "remote", "keyboard", "cell phone",
	"microwave", "oven", "toaster", "sink", "refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}
