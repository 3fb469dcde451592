package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

type Consumer struct {
	consumer sarama.Consumer
	logger   *slog.Logger
}

// NewConsumer connects a partition consumer, trying up to attempts times
// while the broker comes up.
func NewConsumer(brokers []string, attempts int, logger *slog.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true

	var (
		client sarama.Consumer
		err    error
	)
	for i := 1; i <= max(attempts, 1); i++ {
		if i > 1 {
			time.Sleep(connectBackoff)
		}
		client, err = sarama.NewConsumer(brokers, config)
		if err == nil {
			logger.Info("kafka consumer initialized", "brokers", brokers)
			return NewConsumerFrom(client, logger), nil
		}
		logger.Warn("waiting for kafka consumer", "attempt", i, "error", err)
	}
	return nil, fmt.Errorf("failed to start kafka consumer: %w", err)
}

func NewConsumerFrom(consumer sarama.Consumer, logger *slog.Logger) *Consumer {
	return &Consumer{consumer: consumer, logger: logger}
}

// Consume feeds every new message on partition 0 of topic to handler until ctx
// is cancelled. It returns once the partition consumer is running.
func (c *Consumer) Consume(ctx context.Context, topic string, handler func([]byte)) error {
	pc, err := c.consumer.ConsumePartition(topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("consume %s: %w", topic, err)
	}

	c.logger.Info("listening on topic", "topic", topic)

	go func() {
		defer pc.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pc.Messages():
				if !ok {
					return
				}
				handler(msg.Value)
			case err, ok := <-pc.Errors():
				if !ok {
					return
				}
				c.logger.Error("kafka consumer error", "topic", topic, "error", err)
			}
		}
	}()
	return nil
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}
