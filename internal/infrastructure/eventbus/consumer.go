// Package eventbus consumes session lifecycle events published by the
// course/exam application.
package eventbus

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/config"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
)

const (
	commitTimeout = 3 * time.Second
	fetchBackoff  = 500 * time.Millisecond
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one message body. Returning an error still commits the
// offset: events are scheduling hints and the hourly sweep covers losses.
type Handler interface {
	HandleMessage(ctx context.Context, key, value []byte) error
}

type HandlerFunc func(ctx context.Context, key, value []byte) error

func (f HandlerFunc) HandleMessage(ctx context.Context, key, value []byte) error {
	return f(ctx, key, value)
}

// NewReader builds a group reader with manual commits.
func NewReader(cfg *config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
}

type Consumer struct {
	reader  MessageReader
	handler Handler
	logger  *observability.Logger
	metrics *observability.Metrics
}

func NewConsumer(reader MessageReader, handler Handler, logger *observability.Logger, metrics *observability.Metrics) *Consumer {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Consumer{
		reader:  reader,
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

// Run consumes until ctx is cancelled. Offsets are committed after the
// handler returns, so a crash mid-message redelivers it.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info(ctx, "Session event consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Warn(ctx, "Failed to fetch session event", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchBackoff):
			}
			continue
		}

		c.handle(ctx, msg)

		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
		if err := c.reader.CommitMessages(cctx, msg); err != nil {
			c.logger.Warn(ctx, "Failed to commit session event offset",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
		cancel()
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(ctx, "Recovered panic in session event handler",
				zap.Any("panic", r),
				zap.Int64("offset", msg.Offset),
			)
		}
	}()

	err := c.handler.HandleMessage(ctx, msg.Key, msg.Value)
	if c.metrics != nil {
		c.metrics.RecordBackgroundJob("session_event_consumer", time.Since(start), err)
	}
	if err != nil {
		c.logger.Warn(ctx, "Session event rejected",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
