package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Notifier is told about each conversion, e.g. the sales-ops mailbox.
type Notifier interface {
	NotifyLeadConverted(ctx context.Context, event LeadConvertedEvent) error
}

type Worker struct {
	Channel  *amqp.Channel
	Notifier Notifier
	Logger   *slog.Logger
}

func NewWorker(ch *amqp.Channel, notifier Notifier, logger *slog.Logger) *Worker {
	return &Worker{
		Channel:  ch,
		Notifier: notifier,
		Logger:   logger,
	}
}

// Start consumes queueName until ctx is done or the channel closes.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(
		queueName, // queue
		"",        // consumer
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("registering consumer: %w", err)
	}

	w.Logger.Info("worker consuming", slog.String("queue", queueName))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			if w.handle(ctx, d.Body) {
				d.Ack(false)
			} else {
				// No requeue: the DLX keeps it for inspection.
				d.Nack(false, false)
			}
		}
	}
}

// handle reports whether the delivery can be acked.
func (w *Worker) handle(ctx context.Context, body []byte) bool {
	var event LeadConvertedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		w.Logger.Error("malformed event", slog.Any("err", err))
		return false
	}

	switch event.Type {
	case EventTypeLeadConverted:
		if err := w.Notifier.NotifyLeadConverted(ctx, event); err != nil {
			w.Logger.Error("notifying lead conversion",
				slog.String("event_id", event.EventID),
				slog.Int64("lead_id", event.LeadID),
				slog.Any("err", err))
			return false
		}
		w.Logger.Info("lead conversion notified",
			slog.String("event_id", event.EventID),
			slog.Int64("lead_id", event.LeadID))
		return true

	default:
		// Not ours; ack so it does not clog the queue.
		w.Logger.Warn("unknown event type", slog.String("type", event.Type))
		return true
	}
}
