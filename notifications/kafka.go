package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaDispatcher publishes order events to a Kafka topic for downstream
// consumers (email, warehouse). It is optional: the server runs without it
// when no brokers are configured.
type KafkaDispatcher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func NewKafkaDispatcher(brokers, topic string, logger *zap.Logger) (*KafkaDispatcher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("Kafka producer initialized", zap.String("topic", topic))
	return &KafkaDispatcher{producer: producer, topic: topic, logger: logger}, nil
}

func (k *KafkaDispatcher) DispatchOrderEvent(ctx context.Context, event OrderEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		k.logger.Error("failed to marshal order event", zap.Error(err))
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(event.OrderID.String()),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		k.logger.Error("failed to publish order event",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
		return
	}

	k.logger.Info("order event published",
		zap.String("event_type", event.EventType),
		zap.String("order_id", event.OrderID.String()),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
}

func (k *KafkaDispatcher) Close() error {
	return k.producer.Close()
}
