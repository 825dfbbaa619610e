package detection

import (
	"fmt"
	"strings"
)

// ClassCount is a single row of a CountReport
type ClassCount struct {
	Class string
	Count int
}

// CountReport tallies detections per class in first-seen order
type CountReport struct {
	rows  []ClassCount
	index map[string]int
}

// NewCountReport builds a report from labels
func NewCountReport(labels []Detection) *CountReport {
	r := &CountReport{index: make(map[string]int)}
	for _, l := range labels {
		r.Add(l.Class)
	}
	return r
}

// Add counts one occurrence of class
func (r *CountReport) Add(class string) {
	if i, ok := r.index[class]; ok {
		r.rows[i].Count++
		return
	}
	r.index[class] = len(r.rows)
	r.rows = append(r.rows, ClassCount{Class: class, Count: 1})
}

// Rows returns the tallies in first-seen order
func (r *CountReport) Rows() []ClassCount {
	out := make([]ClassCount, len(r.rows))
	copy(out, r.rows)
	return out
}

// Total returns the number of detections counted
func (r *CountReport) Total() int {
	total := 0
	for _, row := range r.rows {
		total += row.Count
	}
	return total
}

// Len returns the number of distinct classes
func (r *CountReport) Len() int {
	return len(r.rows)
}

// String renders the report as the chat reply text
func (r *CountReport) String() string {
	var b strings.Builder
	b.WriteString("Detected objects:\n")
	for _, row := range r.rows {
		fmt.Fprintf(&b, "%s: %d\n", row.Class, row.Count)
	}
	return b.String()
}
