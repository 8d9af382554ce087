package strategy

import (
	"fmt"
	"sync"

	"candleflow/internal/ports"
	"candleflow/internal/strategy/strategies"
)

// Params are the tunable knobs for one strategy instance. Missing keys fall
// back to per-strategy defaults.
type Params map[string]float64

// Factory builds a fresh strategy instance from run parameters. Instances are
// never shared between runs.
type Factory func(params Params) (ports.Strategy, error)

// Registry maps strategy identifiers to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a strategy identifier to its factory, replacing any previous
// binding.
func (r *Registry) Register(id string, factory Factory) {
	r.mu.Lock()
	r.factories[id] = factory
	r.mu.Unlock()
}

// Create builds a new instance of the identified strategy.
// Unknown identifiers fail with ports.ErrInvalidStrategy.
func (r *Registry) Create(id string, params Params) (ports.Strategy, error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("strategy %q: %w", id, ports.ErrInvalidStrategy)
	}
	return factory(params)
}

// IDs returns the registered strategy identifiers.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	return ids
}

func (p Params) get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// NewDefaultRegistry returns a registry with the built-in strategies.
func NewDefaultRegistry(logger ports.Logger) *Registry {
	r := NewRegistry()

	r.Register("sma-cross", func(params Params) (ports.Strategy, error) {
		return strategies.NewSMACross(strategies.SMACrossConfig{
			FastPeriod: int(params.get("fastPeriod", 10)),
			SlowPeriod: int(params.get("slowPeriod", 30)),
			Logger:     logger,
		})
	})

	r.Register("rsi-reversal", func(params Params) (ports.Strategy, error) {
		return strategies.NewRSIReversal(strategies.RSIReversalConfig{
			Period:     int(params.get("period", 14)),
			Overbought: params.get("overbought", 70),
			Oversold:   params.get("oversold", 30),
			Logger:     logger,
		})
	})

	return r
}
