package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"picker-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Producer writes domain events to one topic
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a new Kafka producer. Messages are hash-balanced on
// their key.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{writer: writer, logger: util.Component("kafka-producer")}
}

// EventTypeHeader carries the event type so consumers can route without
// decoding the payload
const EventTypeHeader = "event-type"

// PublishEvent writes one JSON event. Events sharing a key land on the same
// partition, so per-order ordering is kept.
func (p *Producer) PublishEvent(ctx context.Context, key, eventType string, event interface{}) error {
	ctx, span := util.StartSpan(ctx, "Producer.PublishEvent",
		attribute.String("messaging.destination", p.writer.Topic),
		attribute.String("event.type", eventType))
	defer span.End()

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return util.FailSpan(span, fmt.Errorf("failed to marshal event: %w", err))
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: eventBytes,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: EventTypeHeader, Value: []byte(eventType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		util.EventsPublishedTotal.WithLabelValues(eventType, "failed").Inc()
		return util.FailSpan(span, fmt.Errorf("failed to write message to kafka: %w", err))
	}

	util.EventsPublishedTotal.WithLabelValues(eventType, "success").Inc()
	p.logger.Debug("Published event", zap.String("key", key), zap.String("event_type", eventType))
	return nil
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer drains one topic as part of a consumer group
type Consumer struct {
	reader       *kafka.Reader
	fetchBackoff time.Duration
	logger       *zap.Logger
}

// NewConsumer creates a consumer that starts from the oldest uncommitted
// offset of its group
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

	return &Consumer{
		reader:       reader,
		fetchBackoff: time.Second,
		logger:       util.Component("kafka-consumer"),
	}
}

// Close leaves the group and closes the reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler processes one fetched message
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming blocks until ctx is cancelled. Every fetched message is
// committed after its handler returns; a failing message is logged and
// skipped so one bad envelope cannot wedge the partition.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	topic := c.reader.Config().Topic
	c.logger.Info("Consuming", zap.String("topic", topic), zap.String("group", c.reader.Config().GroupID))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Consumer stopped", zap.String("topic", topic))
				return ctx.Err()
			}
			c.logger.Error("Fetch failed, backing off", zap.Duration("backoff", c.fetchBackoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.fetchBackoff):
			}
			continue
		}

		c.dispatch(ctx, handler, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Commit failed",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, handler MessageHandler, msg kafka.Message) {
	ctx, span := util.StartSpan(ctx, "Consumer.Handle",
		attribute.String("messaging.source", msg.Topic),
		attribute.Int("messaging.kafka.partition", msg.Partition),
		attribute.Int64("messaging.kafka.offset", msg.Offset))
	defer span.End()

	if err := util.FailSpan(span, handler(ctx, msg)); err != nil {
		c.logger.Warn("Message skipped",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
	}
}
