// Package service holds infrastructure clients used by handlers: the
// RabbitMQ publisher that hands completed sales, refunds and donations to
// the mail consumer.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/queue"
)

// Publisher publishes events to queue.MailQueue.  Each publish opens its own
// connection so a broker restart never leaves a stale channel behind.
type Publisher struct {
	url string
	log logger.Logger
}

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string, log logger.Logger) *Publisher {
	return &Publisher{url: url, log: log.With("component", "publisher")}
}

// Publish sends ev as a persistent JSON message.  Errors are logged and
// returned so callers may ignore them without failing the request.
func (p *Publisher) Publish(ctx context.Context, ev queue.Event) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Error("rabbitmq dial failed", "error", err, "event", ev.Type)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Error("rabbitmq channel open failed", "error", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(queue.MailQueue, true, false, false, false, nil); err != nil {
		p.log.Error("rabbitmq queue declare failed", "error", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.MailQueue, false, false, pub); err != nil {
		p.log.Error("rabbitmq publish failed", "error", err, "event", ev.Type)
		return err
	}
	return nil
}
