package distributor

import (
	"context"
	"fmt"
	"sync"

	"candleflow/internal/domain"
	"candleflow/internal/ports"
	"candleflow/internal/subscription"
)

// Recipient is the delivery side of a connected client. Send must be safe for
// concurrent use; a slow or broken recipient only affects itself.
type Recipient interface {
	ID() string
	Send(groupKey string, candle domain.Candle) error
}

// Distributor pushes finalized candles to every current member of the
// emitting group. Delivery is fire-and-forget per recipient: one failure never
// blocks or fails the others. Membership is sampled at the moment of emission;
// users subscribing afterwards get the next candle.
type Distributor struct {
	registry *subscription.Registry
	logger   ports.Logger

	mu         sync.RWMutex
	recipients map[string]Recipient // userID -> transport
}

// Config holds configuration for the distributor.
type Config struct {
	Registry *subscription.Registry
	Logger   ports.Logger
}

// New creates a distributor bound to a subscription registry.
func New(cfg Config) (*Distributor, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("subscription registry is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Distributor{
		registry:   cfg.Registry,
		logger:     cfg.Logger,
		recipients: make(map[string]Recipient),
	}, nil
}

// Attach registers a connected client's transport. A reconnecting client
// replaces its previous transport; prior subscriptions are not restored.
func (d *Distributor) Attach(r Recipient) {
	d.mu.Lock()
	d.recipients[r.ID()] = r
	d.mu.Unlock()
}

// Detach removes the client's transport and drops all of its subscriptions.
func (d *Distributor) Detach(userID string) {
	d.mu.Lock()
	delete(d.recipients, userID)
	d.mu.Unlock()

	dropped := d.registry.UnsubscribeAll(userID)
	if dropped > 0 {
		d.logger.Debug(context.Background(), "Client detached, subscriptions dropped", map[string]interface{}{"userID": userID, "groups": dropped})
	}
}

// Publish delivers a finalized candle to all current members of groupKey.
// Fan-out is parallel; Publish returns once every delivery attempt finished.
func (d *Distributor) Publish(groupKey string, candle domain.Candle) {
	members := d.registry.Members(groupKey)
	if len(members) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, userID := range members {
		d.mu.RLock()
		recipient, ok := d.recipients[userID]
		d.mu.RUnlock()
		if !ok {
			// Subscribed but transport already gone; nothing to deliver to.
			continue
		}

		wg.Add(1)
		go func(userID string, r Recipient) {
			defer wg.Done()
			if err := r.Send(groupKey, candle); err != nil {
				d.logger.Warn(context.Background(), "Candle delivery failed", map[string]interface{}{"userID": userID, "group": groupKey, "error": err.Error()})
			}
		}(userID, recipient)
	}
	wg.Wait()
}
