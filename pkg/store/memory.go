// Package store persists completed interview records.
package store

import (
	"context"
	"sync"

	"github.com/harunnryd/sprachbot/pkg/dialogue"
)

// Memory keeps records in process. Used for local runs and tests.
type Memory struct {
	mu      sync.Mutex
	records []dialogue.Record
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(ctx context.Context, rec dialogue.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.records = append(m.records, rec.Clone())
	m.mu.Unlock()
	return nil
}

// Records returns copies of all saved records in save order.
func (m *Memory) Records() []dialogue.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]dialogue.Record, len(m.records))
	for i, r := range m.records {
		out[i] = r.Clone()
	}
	return out
}

var _ dialogue.Persister = (*Memory)(nil)
