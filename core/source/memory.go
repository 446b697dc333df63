package source

import (
	"context"
	"sync"

	"github.com/kilianp07/energyledger/core/model"
)

// MemorySource serves samples held in memory, in append order.
type MemorySource struct {
	mu   sync.RWMutex
	data map[string][]model.Sample
}

// NewMemorySource returns an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{data: map[string][]model.Sample{}}
}

// Append adds samples for a meter. Ordering is the caller's responsibility.
func (m *MemorySource) Append(_ context.Context, meter string, samples []model.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range samples {
		m.data[meter] = append(m.data[meter], s.Clone())
	}
	return nil
}

// Query returns the samples of q.Meter within the range.
func (m *MemorySource) Query(ctx context.Context, q Query) ([]model.Sample, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Sample
	for _, s := range m.data[q.Meter] {
		if q.Contains(s.Timestamp) {
			out = append(out, s)
		}
	}
	return Project(out, q.Fields), nil
}

func init() {
	_ = Register("memory", func(map[string]any) (Source, error) {
		return NewMemorySource(), nil
	})
}
