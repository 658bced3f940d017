package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/andrisetia/merchant-ingest-be/pkg/logger"
)

// ReplicaConsumer mirrors merchant-created events into a local replica map,
// playing the role of a downstream sub-system. It is idempotent on merchant
// id, so broker redeliveries are harmless.
type ReplicaConsumer struct {
	log         *logger.Logger
	workerCount int

	mu       sync.RWMutex
	replicas map[string]MerchantCreatedEvent
}

func NewReplicaConsumer(log *logger.Logger, workerCount int) *ReplicaConsumer {
	return &ReplicaConsumer{
		log:         log,
		workerCount: workerCount,
		replicas:    make(map[string]MerchantCreatedEvent),
	}
}

func (c *ReplicaConsumer) Consume(ctx context.Context, msg Message) error {
	var event MerchantCreatedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("decode merchant-created event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.replicas[event.MerchantID]; exists {
		c.log.Debug(ctx, "Merchant already replicated, skipping")
		return nil
	}

	c.replicas[event.MerchantID] = event

	c.log.Info(ctx, "Merchant replicated",
		"merchant_name", event.Name,
	)

	return nil
}

func (c *ReplicaConsumer) WorkerCount() int {
	return c.workerCount
}

// Replica returns the mirrored event for a merchant, if any.
func (c *ReplicaConsumer) Replica(merchantID string) (MerchantCreatedEvent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	event, ok := c.replicas[merchantID]
	return event, ok
}

func (c *ReplicaConsumer) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.replicas)
}
