package replication

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/andrisetia/merchant-ingest-be/pkg/logger"
)

// KafkaPublisher publishes merchant-created events to a Kafka topic keyed by
// merchant id, so all events for one merchant land on one partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *logger.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *logger.Logger) *KafkaPublisher {
	p := &KafkaPublisher{log: log}

	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion:             p.logCompletion,
	}

	return p
}

// PublishMerchantCreated hands the event to the async writer and returns
// immediately. Delivery outcome is observed only in the completion callback.
func (p *KafkaPublisher) PublishMerchantCreated(ctx context.Context, event MerchantCreatedEvent) {
	ctx = logger.WithMerchantID(ctx, event.MerchantID)

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error(ctx, "Failed to serialize merchant-created event",
			"error", err,
		)
		return
	}

	p.log.Info(ctx, "Publishing merchant-created event")

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.MerchantID),
		Value: payload,
	})
	if err != nil {
		// With an async writer this only fires on enqueue failures; broker
		// errors arrive through the completion callback.
		p.log.Error(ctx, "Failed to enqueue merchant-created event",
			"error", err,
		)
	}
}

func (p *KafkaPublisher) logCompletion(messages []kafka.Message, err error) {
	ctx := context.Background()

	for _, msg := range messages {
		if err != nil {
			p.log.Error(ctx, "Failed to publish merchant-created event",
				"merchant_id", string(msg.Key),
				"error", err,
			)
			continue
		}

		p.log.Info(ctx, "Merchant-created event published",
			"merchant_id", string(msg.Key),
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
