package memory

import (
	"context"
	"sync"

	"coredetect/application/ports"
	"coredetect/domain/events"
	pkgerrors "coredetect/pkg/errors"
)

// InMemoryRunEventStore keeps run events in arrival order
type InMemoryRunEventStore struct {
	mu   sync.RWMutex
	runs map[string][]events.Record
}

// NewInMemoryRunEventStore creates a new in-memory run event store
func NewInMemoryRunEventStore() *InMemoryRunEventStore {
	return &InMemoryRunEventStore{runs: make(map[string][]events.Record)}
}

var _ ports.RunEventStore = (*InMemoryRunEventStore)(nil)

func (s *InMemoryRunEventStore) Append(ctx context.Context, records []events.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.runs[rec.RunID] = append(s.runs[rec.RunID], rec)
	}
	return nil
}

func (s *InMemoryRunEventStore) List(ctx context.Context, runID string) ([]events.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, ok := s.runs[runID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("run").WithDetail("run_id", runID)
	}
	out := make([]events.Record, len(records))
	copy(out, records)
	return out, nil
}
