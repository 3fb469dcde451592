package kafka

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TopicPaymentPaid   = "payment.paid"
	TopicPaymentFailed = "payment.failed"
	TopicOrderUpdated  = "order.updated"

	connectBackoff = 5 * time.Second
)

type PaymentEvent struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Data      PaymentData `json:"data"`
}

type PaymentData struct {
	OrderID           uint            `json:"order_id"`
	CheckoutRequestID string          `json:"checkout_request_id,omitempty"`
	ReceiptNumber     string          `json:"receipt_number,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Phone             string          `json:"phone"`
	ResultCode        int             `json:"result_code"`
	ResultDesc        string          `json:"result_desc,omitempty"`
	OccurredAt        string          `json:"occurred_at"`
}

type Producer struct {
	producer sarama.SyncProducer
	logger   *slog.Logger
}

// NewProducer connects a synchronous producer, trying up to attempts times
// while the broker comes up.
func NewProducer(brokers []string, attempts int, logger *slog.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	var (
		producer sarama.SyncProducer
		err      error
	)
	for i := 1; i <= max(attempts, 1); i++ {
		if i > 1 {
			time.Sleep(connectBackoff)
		}
		producer, err = sarama.NewSyncProducer(brokers, config)
		if err == nil {
			logger.Info("kafka producer initialized", "brokers", brokers)
			return NewProducerFrom(producer, logger), nil
		}
		logger.Warn("waiting for kafka", "attempt", i, "error", err)
	}
	return nil, fmt.Errorf("failed to start kafka producer: %w", err)
}

func NewProducerFrom(producer sarama.SyncProducer, logger *slog.Logger) *Producer {
	return &Producer{producer: producer, logger: logger}
}

func (p *Producer) PublishPaymentPaid(data PaymentData) error {
	return p.publish(TopicPaymentPaid, data)
}

func (p *Producer) PublishPaymentFailed(data PaymentData) error {
	return p.publish(TopicPaymentFailed, data)
}

func (p *Producer) publish(topic string, data PaymentData) error {
	if data.OccurredAt == "" {
		data.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	event := PaymentEvent{
		EventID:   uuid.NewString(),
		EventType: topic,
		Data:      data,
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(fmt.Sprintf("order-%d", data.OrderID)),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now(),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send %s: %w", topic, err)
	}

	p.logger.Info("published event", "topic", topic, "event_id", event.EventID, "order_id", data.OrderID)
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
