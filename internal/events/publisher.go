package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"market-checkout/internal/model"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// OrderCreated is the domain event emitted exactly once per settled order,
// consumed by notification, invoicing and analytics subsystems.
type OrderCreated struct {
	OrderID       string            `json:"orderId"`
	OrderNumber   string            `json:"orderNumber"`
	BuyerID       string            `json:"buyerId"`
	SellerID      string            `json:"sellerId,omitempty"`
	Total         decimal.Decimal   `json:"total"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Items         []model.OrderItem `json:"items"`
	PaymentStatus string            `json:"paymentStatus"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

// Publisher is the event sink boundary.
type Publisher interface {
	// PublishOrderCreated emits the event keyed by order id.
	PublishOrderCreated(ctx context.Context, event *OrderCreated) error
}

// kafkaPublisher implements Publisher on a kafka-go writer.
type kafkaPublisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewKafkaPublisher creates a Kafka-backed publisher from a comma-separated
// broker list.
func NewKafkaPublisher(brokersCSV, topic string, logger zerolog.Logger) Publisher {
	var brokers []string
	for _, b := range strings.Split(brokersCSV, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}

	return &kafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// PublishOrderCreated emits the event keyed by order id.
func (p *kafkaPublisher) PublishOrderCreated(ctx context.Context, event *OrderCreated) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order created event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
		Time:  time.Now().UTC(),
	})
	if err != nil {
		p.logger.Error().Err(err).Str("order_id", event.OrderID).Msg("failed to publish order created event")
		return fmt.Errorf("failed to publish order created event: %w", err)
	}

	p.logger.Info().Str("order_id", event.OrderID).Msg("order created event published")

	return nil
}

// nopPublisher discards events; used when no brokers are configured and in
// tests.
type nopPublisher struct{}

// NewNopPublisher creates a publisher that drops every event.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) PublishOrderCreated(context.Context, *OrderCreated) error {
	return nil
}
