package backtest

import (
	"fmt"
	"sort"
	"sync"

	"candleflow/internal/ports"
)

// RunStore keeps completed backtest results in memory, keyed by run ID.
// Results are immutable once saved.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*Result
}

// NewRunStore creates an empty run store.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]*Result)}
}

// Save stores a completed result.
func (s *RunStore) Save(result *Result) {
	s.mu.Lock()
	s.runs[result.RunID] = result
	s.mu.Unlock()
}

// Get returns the result for the given run ID, or ports.ErrNotFound.
func (s *RunStore) Get(runID string) (*Result, error) {
	s.mu.RLock()
	result, ok := s.runs[runID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("run %q: %w", runID, ports.ErrNotFound)
	}
	return result, nil
}

// List returns all stored results, most recent first.
func (s *RunStore) List() []*Result {
	s.mu.RLock()
	results := make([]*Result, 0, len(s.runs))
	for _, r := range s.runs {
		results = append(results, r)
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].CompletedAt.After(results[j].CompletedAt)
	})
	return results
}
