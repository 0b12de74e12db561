package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/festival-boxoffice/internal/logger"
	"github.com/iliyamo/festival-boxoffice/internal/mail"
	"github.com/iliyamo/festival-boxoffice/internal/model"
	"github.com/iliyamo/festival-boxoffice/internal/report"
)

// Sender delivers rendered mail.  *mail.Mailer implements it.
type Sender interface {
	SendReceipt(r model.Receipt, pdf []byte) error
	SendDonation(d mail.Donation) error
}

// Consumer reads MailQueue and sends receipts and donation confirmations.
type Consumer struct {
	url    string
	sender Sender
	log    logger.Logger
}

// NewConsumer returns a consumer for the broker at url.
func NewConsumer(url string, sender Sender, log logger.Logger) *Consumer {
	return &Consumer{url: url, sender: sender, log: log.With("component", "mail-consumer")}
}

// Run connects to the broker and consumes until ctx is cancelled.  Dial
// failures back off exponentially up to 30s; a dropped connection is
// re-established after two seconds.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("failed to dial broker", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(20, 0, false); err != nil {
		c.log.Warn("set qos failed", "error", err)
	}
	if _, err := ch.QueueDeclare(MailQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(MailQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.log.Error("handle message failed", "error", err)
				_ = d.Nack(false, false) // no requeue: a bad message would loop
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle processes one message body.
func (c *Consumer) Handle(body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	switch ev.Type {
	case EventSaleCompleted, EventRefundCompleted:
		if ev.Receipt == nil {
			return fmt.Errorf("%s without receipt", ev.Type)
		}
		pdf, err := report.ReceiptPDF(*ev.Receipt)
		if err != nil {
			return fmt.Errorf("render receipt: %w", err)
		}
		if err := c.sender.SendReceipt(*ev.Receipt, pdf); err != nil {
			return fmt.Errorf("send receipt: %w", err)
		}
		c.log.Info("receipt sent", "type", ev.Type, "reference", ev.Receipt.Reference)
	case EventDonationReceived:
		if ev.Donation == nil {
			return errors.New("donation event without donation")
		}
		d := ev.Donation
		if err := c.sender.SendDonation(mail.Donation{Festival: d.Festival, Email: d.Email, Amount: d.Amount}); err != nil {
			return fmt.Errorf("send donation mail: %w", err)
		}
		c.log.Info("donation confirmation sent", "transaction_id", d.TransactionID)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
