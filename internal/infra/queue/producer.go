package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const EventTypeLeadConverted = "LeadConverted"

// LeadConvertedEvent is published once per committed conversion.
type LeadConvertedEvent struct {
	EventID                  string    `json:"eventId"`
	Type                     string    `json:"type"`
	LeadID                   int64     `json:"leadId"`
	ContactID                int64     `json:"contactId"`
	AccountID                *int64    `json:"accountId,omitempty"`
	OpportunityID            *int64    `json:"opportunityId,omitempty"`
	AccountMode              string    `json:"accountMode"`
	PossibleDuplicateAccount bool      `json:"possibleDuplicateAccount"`
	ActorID                  string    `json:"actorId,omitempty"`
	OccurredAt               time.Time `json:"occurredAt"`
}

type EventPublisherInterface interface {
	PublishLeadConverted(ctx context.Context, event LeadConvertedEvent) error
}

// Channel is the part of *amqp.Channel the producer uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQProducer struct {
	Ch Channel
}

func NewProducer(ch Channel) *RabbitMQProducer {
	return &RabbitMQProducer{Ch: ch}
}

func (p *RabbitMQProducer) PublishLeadConverted(ctx context.Context, event LeadConvertedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		RoutingKey,
		false, // Mandatory
		false, // Immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Type,
			MessageId:    event.EventID,
			Timestamp:    event.OccurredAt,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publishing to rabbitmq: %w", err)
	}
	return nil
}

// LogPublisher stands in for the broker when none is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) PublishLeadConverted(_ context.Context, event LeadConvertedEvent) error {
	p.Logger.Info("event bus disabled, dropping event",
		slog.String("type", event.Type),
		slog.String("event_id", event.EventID),
		slog.Int64("lead_id", event.LeadID))
	return nil
}
