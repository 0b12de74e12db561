package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// SaleState is derived from the completed/cancelled timestamps and the
// transaction type; it is never stored.
type SaleState int

const (
	SaleInProgress SaleState = iota
	SalePaymentPending
	SaleComplete
	SaleCancelled
)

func (s SaleState) String() string {
	switch s {
	case SaleInProgress:
		return "in_progress"
	case SalePaymentPending:
		return "payment_pending"
	case SaleComplete:
		return "complete"
	case SaleCancelled:
		return "cancelled"
	}
	return "unknown"
}

// MarshalText lets states appear as strings in JSON responses.
func (s SaleState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// StateOf derives the state of a sale.
func StateOf(s model.Sale) SaleState {
	switch {
	case s.Completed != nil:
		return SaleComplete
	case s.Cancelled != nil:
		return SaleCancelled
	case s.TransactionType != nil:
		return SalePaymentPending
	}
	return SaleInProgress
}

// RequireInProgress guards every item mutation.
func RequireInProgress(s model.Sale) error {
	if StateOf(s) != SaleInProgress {
		return ErrSaleNotInProgress
	}
	return nil
}

// IsEmpty reports whether a sale holds nothing at all.
func IsEmpty(s model.Sale, c model.SaleContents) bool {
	return s.Buttons == 0 && c.TicketCount == 0 && c.FringerCount == 0 && c.PAYWCount == 0
}

// SaleTotal is buttons at the festival price plus fringers, tickets, PAYW
// amounts and the donation.
func SaleTotal(s model.Sale, c model.SaleContents, buttonPrice decimal.Decimal) decimal.Decimal {
	return buttonPrice.Mul(decimal.NewFromInt(int64(s.Buttons))).
		Add(c.FringerCost).
		Add(c.TicketCost).
		Add(c.PAYWCost).
		Add(s.Donation)
}

// BeginPayment moves an in-progress sale to payment-pending, snapshotting
// the amount that will be charged.
func BeginPayment(s *model.Sale, tt model.TransactionType, total decimal.Decimal) error {
	if err := RequireInProgress(*s); err != nil {
		return err
	}
	s.TransactionType = &tt
	s.Amount = total
	return nil
}

// ResetPayment drops a failed or abandoned card payment back to in-progress.
func ResetPayment(s *model.Sale) error {
	if StateOf(*s) != SalePaymentPending {
		return ErrSaleNotPending
	}
	s.TransactionType = nil
	s.TransactionID = nil
	return nil
}

// Complete marks the sale paid.  Cash sales complete straight from
// in-progress; card and online sales must already be pending with the same
// transaction type.
func Complete(s *model.Sale, tt model.TransactionType, total decimal.Decimal, now time.Time) error {
	switch StateOf(*s) {
	case SaleInProgress:
		if tt != model.TransactionCash {
			return ErrSaleNotPending
		}
	case SalePaymentPending:
		if *s.TransactionType != tt {
			return ErrSaleNotPending
		}
	default:
		return ErrSaleClosed
	}
	s.TransactionType = &tt
	s.Amount = total
	completed := now.UTC()
	s.Completed = &completed
	return nil
}

// CancelAction says what cancelling a sale does to its row.
type CancelAction int

const (
	CancelDelete CancelAction = iota // empty sales are removed outright
	CancelMark                       // anything else keeps its row with a timestamp
)

// Cancel decides how to cancel a sale and, for CancelMark, sets the
// timestamp.  Completed and already cancelled sales cannot be cancelled.
func Cancel(s *model.Sale, c model.SaleContents, now time.Time) (CancelAction, error) {
	switch StateOf(*s) {
	case SaleComplete, SaleCancelled:
		return 0, ErrSaleClosed
	}
	if IsEmpty(*s, c) {
		return CancelDelete, nil
	}
	cancelled := now.UTC()
	s.Cancelled = &cancelled
	return CancelMark, nil
}

// TicketCost is the price captured on a new ticket: zero when paid with a
// fringer or issued to a volunteer.
func TicketCost(tt model.TicketType, viaFringer bool) decimal.Decimal {
	if viaFringer || tt.Name == model.TicketTypeVolunteer {
		return decimal.Zero
	}
	return tt.Price
}

// Channel identifies where a sale is being made.
type Channel int

const (
	ChannelOnline Channel = iota
	ChannelBoxOffice
	ChannelVenue
)

// ChannelOf returns the channel of a sale.
func ChannelOf(s model.Sale) Channel {
	switch {
	case s.BoxOfficeID != nil:
		return ChannelBoxOffice
	case s.VenueID != nil:
		return ChannelVenue
	}
	return ChannelOnline
}

// CheckChannel rejects ticket types not offered on the channel.
func CheckChannel(tt model.TicketType, ch Channel) error {
	ok := false
	switch ch {
	case ChannelOnline:
		ok = tt.IsOnline
	case ChannelBoxOffice:
		ok = tt.IsBoxOffice
	case ChannelVenue:
		ok = tt.IsVenue
	}
	if !ok {
		return ErrWrongChannel
	}
	return nil
}

// RequirePayable allows payment to start on an in-progress sale with at
// least one item.
func RequirePayable(s model.Sale, c model.SaleContents) error {
	if err := RequireInProgress(s); err != nil {
		return err
	}
	if IsEmpty(s, c) && s.Donation.IsZero() {
		return ErrSaleEmpty
	}
	return nil
}
