package results

import (
	"context"
	"fmt"
	"sync"

	"github.com/tendant/simple-detection-pipeline/pkg/detection"
)

// MemoryStore keeps summaries in process memory. Intended for development.
type MemoryStore struct {
	mu        sync.RWMutex
	summaries map[string]detection.PredictionSummary
	order     []string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{summaries: make(map[string]detection.PredictionSummary)}
}

// Insert stores a copy of summary
func (m *MemoryStore) Insert(ctx context.Context, summary *detection.PredictionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.summaries[summary.PredictionID]; exists {
		return fmt.Errorf("duplicate prediction id %s", summary.PredictionID)
	}
	cp := *summary
	cp.Labels = append([]detection.Detection(nil), summary.Labels...)
	m.summaries[summary.PredictionID] = cp
	m.order = append(m.order, summary.PredictionID)
	return nil
}

// Get returns a copy of the stored summary
func (m *MemoryStore) Get(ctx context.Context, predictionID string) (*detection.PredictionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.summaries[predictionID]
	if !ok {
		return nil, ErrSummaryNotFound
	}
	return &s, nil
}

// List returns all summaries in insertion order
func (m *MemoryStore) List() []detection.PredictionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]detection.PredictionSummary, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.summaries[id])
	}
	return out
}

// Close is a no-op
func (m *MemoryStore) Close(ctx context.Context) error {
	return nil
}
