package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"keyflow-bot/internal/models"
)

type OrderEvent struct {
	Type      string             `json:"type"`
	OrderID   int64              `json:"order_id"`
	UserID    int64              `json:"user_id"`
	Amount    int64              `json:"amount"`
	Status    models.OrderStatus `json:"status"`
	Prior     models.OrderStatus `json:"prior,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

func (p *Producer) publish(event OrderEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Key by order id so events for one order stay in one partition.
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
			Value: msgBytes,
		},
	)
}

// PublishOrderCreated streams a created-order event to Kafka.
func (p *Producer) PublishOrderCreated(order models.Order) error {
	return p.publish(OrderEvent{
		Type:      "order.created",
		OrderID:   order.ID,
		UserID:    order.UserID,
		Amount:    order.Amount,
		Status:    order.Status,
		Timestamp: time.Now(),
	})
}

// PublishStatusChanged streams an applied status transition to Kafka.
func (p *Producer) PublishStatusChanged(order models.Order, prior models.OrderStatus) error {
	return p.publish(OrderEvent{
		Type:      "order.status_changed",
		OrderID:   order.ID,
		UserID:    order.UserID,
		Amount:    order.Amount,
		Status:    order.Status,
		Prior:     prior,
		Timestamp: time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
