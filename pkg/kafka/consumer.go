package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler processes one message. A returned error dead-letters the message.
type Handler func(ctx context.Context, msg kafkago.Message) error

// Publisher is the subset of Producer the consumer needs for dead letters.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte, headers map[string]string) error
}

type ConsumerConfig struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
}

// Consumer reads a topic through a consumer group and commits each message
// once it has been handled or dead-lettered.
type Consumer struct {
	reader     messageReader
	deadLetter Publisher
	logger     *zap.Logger
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewConsumer builds a group reader. deadLetter may be nil, in which case
// failed messages are logged and committed.
func NewConsumer(cfg ConsumerConfig, deadLetter Publisher, logger *zap.Logger) *Consumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
	})
	return &Consumer{reader: reader, deadLetter: deadLetter, logger: logger}
}

// Run blocks, feeding messages to handle until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		log := c.logger.With(
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)

		if err := handle(ctx, msg); err != nil {
			log.Error("message handling failed", zap.Error(err))
			if err := c.sendDeadLetter(ctx, msg, err); err != nil {
				// leave the offset uncommitted so the message is redelivered after restart
				return fmt.Errorf("dead-letter message: %w", err)
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

func (c *Consumer) sendDeadLetter(ctx context.Context, msg kafkago.Message, cause error) error {
	if c.deadLetter == nil {
		return nil
	}
	headers := map[string]string{
		"error":            cause.Error(),
		"source_topic":     msg.Topic,
		"source_partition": fmt.Sprint(msg.Partition),
		"source_offset":    fmt.Sprint(msg.Offset),
	}
	return c.deadLetter.Publish(ctx, msg.Key, msg.Value, headers)
}

// Close releases the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
