// Package queue defines the events exchanged over the message broker and the
// consumer that turns them into mail.
package queue

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// MailQueue is the durable queue every mail-producing event goes to.
const MailQueue = "boxoffice.mail"

// Event types.
const (
	EventSaleCompleted    = "sale.completed"
	EventRefundCompleted  = "refund.completed"
	EventDonationReceived = "donation.received"
)

// Event is the envelope published after a sale or refund completes or a
// donation is confirmed.  Exactly one of Receipt and Donation is set.  It
// carries everything the consumer needs, so the consumer never reads the
// database.
type Event struct {
	Type       string         `json:"type"`
	Receipt    *model.Receipt `json:"receipt,omitempty"`
	Donation   *DonationEvent `json:"donation,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// DonationEvent describes a confirmed donation.
type DonationEvent struct {
	Festival      string          `json:"festival"`
	Email         string          `json:"email"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
}

// ReceiptEvent wraps a receipt in an event of the matching type.
func ReceiptEvent(r model.Receipt) Event {
	typ := EventSaleCompleted
	if r.Kind == model.ReceiptRefund {
		typ = EventRefundCompleted
	}
	return Event{Type: typ, Receipt: &r, OccurredAt: time.Now().UTC()}
}

// DonationReceived wraps a donation in an event.
func DonationReceived(d DonationEvent) Event {
	return Event{Type: EventDonationReceived, Donation: &d, OccurredAt: time.Now().UTC()}
}
