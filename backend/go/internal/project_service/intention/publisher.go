package intention

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Publisher sends a keyed message to the generation topic.
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// KafkaPublisher publishes intentions on a shared writer. The topic is set per message.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaPublisher creates a new KafkaPublisher.
func NewKafkaPublisher(writer *kafka.Writer, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic}
}

// Publish marshals value as JSON and writes it under key.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	msgBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal intention: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
	if err != nil {
		return fmt.Errorf("write to topic %s: %w", p.topic, err)
	}
	return nil
}
