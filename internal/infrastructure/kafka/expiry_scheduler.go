package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// ExpiryJobEvent registers a deposit order with the external expiry
// scheduler. The scheduler owns the wall-clock alarm; the sweep is the
// backstop for registrations that never fire.
type ExpiryJobEvent struct {
	TransactionID string    `json:"transaction_id"`
	OrderID       string    `json:"order_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type KafkaExpiryScheduler struct {
	writer *kafka.Writer
}

func NewKafkaExpiryScheduler(brokers []string, topic string) *KafkaExpiryScheduler {
	return &KafkaExpiryScheduler{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (s *KafkaExpiryScheduler) Schedule(ctx context.Context, recordID, orderID string, createdAt time.Time) error {
	msg, err := json.Marshal(ExpiryJobEvent{
		TransactionID: recordID,
		OrderID:       orderID,
		CreatedAt:     createdAt,
	})
	if err != nil {
		return err
	}

	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(orderID),
		Value: msg,
		Time:  time.Now(),
	})
}
