package aggregator

import (
	"context"
	"sync"

	"candleflow/internal/domain"
	"candleflow/internal/ports"
)

// EmitFunc receives each finalized candle together with its group key.
type EmitFunc func(groupKey string, candle domain.Candle)

// Manager owns one single-goroutine aggregation worker per (symbol, interval)
// group. Ticks for a group are processed in arrival order; distinct groups run
// independently.
type Manager struct {
	emit    EmitFunc
	logger  ports.Logger
	bufSize int

	mu       sync.RWMutex
	bySymbol map[string][]*worker // lower-cased symbol -> workers across intervals
	byGroup  map[string]*worker
	closed   bool
	wg       sync.WaitGroup
}

type worker struct {
	agg   *Aggregator
	ticks chan domain.Tick
}

// ManagerConfig holds configuration for the aggregation manager.
type ManagerConfig struct {
	Emit       EmitFunc
	Logger     ports.Logger
	BufferSize int // Per-worker tick queue depth
}

// NewManager creates an aggregation manager.
func NewManager(cfg ManagerConfig) *Manager {
	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 1024
	}
	return &Manager{
		emit:     cfg.Emit,
		logger:   cfg.Logger,
		bufSize:  bufSize,
		bySymbol: make(map[string][]*worker),
		byGroup:  make(map[string]*worker),
	}
}

// EnsureGroup starts an aggregation worker for (symbol, interval) if one is
// not already running. Idempotent.
func (m *Manager) EnsureGroup(symbol string, interval domain.Interval) {
	key := domain.GroupKey(symbol, interval)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, ok := m.byGroup[key]; ok {
		return
	}

	w := &worker{
		agg:   New(symbol, interval),
		ticks: make(chan domain.Tick, m.bufSize),
	}
	m.byGroup[key] = w
	symKey := domain.GroupKey(symbol, "") // lower-cased symbol + "@"
	m.bySymbol[symKey] = append(m.bySymbol[symKey], w)

	m.wg.Add(1)
	go m.run(w)

	if m.logger != nil {
		m.logger.Info(context.Background(), "Aggregation group started", map[string]interface{}{"group": key})
	}
}

func (m *Manager) run(w *worker) {
	defer m.wg.Done()
	for tick := range w.ticks {
		if closed := w.agg.Apply(tick); closed != nil {
			m.emit(w.agg.GroupKey(), *closed)
		}
	}
}

// Dispatch routes a tick to every worker aggregating its symbol. If a worker's
// queue is full the tick is dropped for that group rather than stalling the
// feed; the drop is logged.
//
// The lock is held across the sends: Close closes the tick channels under the
// write lock, so a send can never hit a closed channel. The sends are
// non-blocking, so the lock is never held waiting on a full queue.
func (m *Manager) Dispatch(tick domain.Tick) {
	symKey := domain.GroupKey(tick.Symbol, "")

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}

	for _, w := range m.bySymbol[symKey] {
		select {
		case w.ticks <- tick:
		default:
			if m.logger != nil {
				m.logger.Warn(context.Background(), "Tick queue full, dropping tick", map[string]interface{}{"group": w.agg.GroupKey()})
			}
		}
	}
}

// Close stops all workers and waits for their queues to drain.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, w := range m.byGroup {
		close(w.ticks)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
