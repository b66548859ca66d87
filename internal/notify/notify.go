// Package notify carries push notifications out of the engine. Emission is
// fire-and-forget: a sink outage delays pushed updates but never rolls back
// or delays the state transition that produced them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"order-workflow/internal/models"

	"github.com/segmentio/kafka-go"
)

// Sink accepts notification events for asynchronous, at-least-once delivery
// with no ordering guarantee.
type Sink interface {
	Emit(ctx context.Context, event models.NotificationEvent) error
}

// KafkaSink publishes notification events to a Kafka topic, keyed by order id
// so updates for one order land on one partition.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink creates a Kafka-backed notification sink
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &KafkaSink{writer: writer}
}

// Emit publishes one notification event
func (s *KafkaSink) Emit(ctx context.Context, event models.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("order-%s", event.OrderID)),
		Value: payload,
		Time:  event.EmittedAt,
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write notification to kafka: %w", err)
	}
	return nil
}

// Close closes the sink
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// Consumer reads notification events back off the topic for delivery.
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a Kafka consumer for the notification topic
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{reader: reader}
}

// MessageHandler is a function type for handling messages
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming fetches messages and hands them to the handler, committing
// offsets after each handled message. Handler errors skip the commit so the
// message redelivers (at-least-once).
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				time.Sleep(time.Second)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				continue
			}

			_ = c.reader.CommitMessages(ctx, msg)
		}
	}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
