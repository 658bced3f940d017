package replication

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/andrisetia/merchant-ingest-be/pkg/logger"
	"github.com/andrisetia/merchant-ingest-be/pkg/retry"
)

// Message is one record moving through the in-process broker.
type Message struct {
	Key       string
	Value     []byte
	Timestamp time.Time
}

// Consumer handles messages from a subscribed topic.
type Consumer interface {
	Consume(ctx context.Context, msg Message) error
	WorkerCount() int
}

// ChannelBroker is a buffered-channel stand-in for the external message
// broker, used when no Kafka brokers are configured and in tests. Publish is
// non-blocking: a full topic channel drops the message with a warning, which
// matches the best-effort delivery contract.
type ChannelBroker struct {
	channels      map[string]chan Message
	consumers     map[string][]Consumer
	mu            sync.RWMutex
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
	log           *logger.Logger
	channelBuffer int
	maxRetries    int
	started       bool
}

type BrokerConfig struct {
	ChannelBuffer int
	MaxRetries    int
}

func NewChannelBroker(log *logger.Logger, cfg *BrokerConfig) *ChannelBroker {
	if cfg == nil {
		cfg = &BrokerConfig{
			ChannelBuffer: 1000,
			MaxRetries:    5,
		}
	}

	return &ChannelBroker{
		channels:      make(map[string]chan Message),
		consumers:     make(map[string][]Consumer),
		log:           log,
		channelBuffer: cfg.ChannelBuffer,
		maxRetries:    cfg.MaxRetries,
	}
}

func (b *ChannelBroker) Subscribe(topic string, consumer Consumer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.channels[topic]; !exists {
		b.channels[topic] = make(chan Message, b.channelBuffer)
	}

	b.consumers[topic] = append(b.consumers[topic], consumer)

	return nil
}

func (b *ChannelBroker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	b.ctx, b.cancel = context.WithCancel(ctx)

	for topic, consumers := range b.consumers {
		ch := b.channels[topic]

		for _, consumer := range consumers {
			workerCount := consumer.WorkerCount()
			b.log.Info(b.ctx, "Starting broker workers",
				"topic", topic,
				"worker_count", workerCount,
			)

			for i := 0; i < workerCount; i++ {
				b.wg.Add(1)
				go b.worker(b.ctx, topic, ch, consumer, i)
			}
		}
	}

	b.started = true
	b.log.Info(b.ctx, "In-process broker started")

	return nil
}

func (b *ChannelBroker) worker(ctx context.Context, topic string, ch <-chan Message, consumer Consumer, workerID int) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			b.log.Debug(ctx, "Broker worker stopping", "topic", topic, "worker_id", workerID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			b.deliver(ctx, topic, msg, consumer, workerID)
		}
	}
}

func (b *ChannelBroker) deliver(ctx context.Context, topic string, msg Message, consumer Consumer, workerID int) {
	msgCtx := logger.WithMerchantID(ctx, msg.Key)

	err := retry.Do(msgCtx, func() error {
		return consumer.Consume(msgCtx, msg)
	}, retry.WithMaxAttempts(b.maxRetries), retry.WithBaseDelay(100*time.Millisecond))

	if err != nil {
		b.log.Error(msgCtx, "Failed to deliver message after retries",
			"topic", topic,
			"worker_id", workerID,
			"error", err,
		)
		return
	}

	b.log.Debug(msgCtx, "Message delivered",
		"topic", topic,
		"worker_id", workerID,
	)
}

// Publish enqueues a message for the topic's subscribers without blocking.
func (b *ChannelBroker) Publish(ctx context.Context, topic, key string, value []byte) {
	b.mu.RLock()
	ch, exists := b.channels[topic]
	b.mu.RUnlock()

	if !exists {
		b.log.Warn(ctx, "No subscribers for topic, message dropped",
			"topic", topic,
			"key", key,
		)
		return
	}

	select {
	case ch <- Message{Key: key, Value: value, Timestamp: time.Now()}:
		b.log.Debug(ctx, "Message published", "topic", topic, "key", key)
	default:
		b.log.Warn(ctx, "Topic channel full, message dropped",
			"topic", topic,
			"key", key,
		)
	}
}

func (b *ChannelBroker) Shutdown(ctx context.Context) error {
	b.log.Info(ctx, "Shutting down in-process broker")

	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info(ctx, "In-process broker shutdown complete")
		return nil
	case <-ctx.Done():
		b.log.Warn(ctx, "In-process broker shutdown timeout")
		return ctx.Err()
	}
}

// ChannelPublisher adapts the in-process broker to the Publisher interface.
type ChannelPublisher struct {
	broker *ChannelBroker
	topic  string
	log    *logger.Logger
}

func NewChannelPublisher(broker *ChannelBroker, topic string, log *logger.Logger) *ChannelPublisher {
	return &ChannelPublisher{
		broker: broker,
		topic:  topic,
		log:    log,
	}
}

func (p *ChannelPublisher) PublishMerchantCreated(ctx context.Context, event MerchantCreatedEvent) {
	ctx = logger.WithMerchantID(ctx, event.MerchantID)

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error(ctx, "Failed to serialize merchant-created event",
			"error", err,
		)
		return
	}

	p.broker.Publish(ctx, p.topic, event.MerchantID, payload)
}
