// Package ledger holds the bookkeeping rules of the box office: ticket
// availability, the sale and refund state machines, derived totals and
// checkpoint reconciliation.  Nothing here touches the database; handlers
// load rows, ask the ledger, then persist the outcome inside a transaction.
package ledger

import (
	"errors"
	"fmt"
)

// Invariant violations.  Handlers answer these with 409 and the error text.
var (
	ErrSaleNotInProgress   = errors.New("sale is not in progress")
	ErrSaleNotPending      = errors.New("sale is not awaiting payment")
	ErrSaleClosed          = errors.New("sale is already completed or cancelled")
	ErrRefundCompleted     = errors.New("refund is already completed")
	ErrTicketNotFound      = errors.New("Ticket not found")
	ErrTicketRefunded      = errors.New("Ticket already refunded")
	ErrEFringerRefund      = errors.New("eFringer tickets cannot be refunded")
	ErrTicketNotSold       = errors.New("ticket has not been sold")
	ErrPerformanceOpen     = errors.New("performance is already open")
	ErrPerformanceNotOpen  = errors.New("performance is not open")
	ErrPerformanceClosed   = errors.New("performance is already closed")
	ErrFringerUnavailable  = errors.New("fringer cannot be used for this performance")
	ErrBasketEmpty         = errors.New("basket is empty")
	ErrSaleEmpty           = errors.New("sale is empty")
	ErrOnlineSalesClosed   = errors.New("online sales are closed")
	ErrWrongChannel        = errors.New("ticket type is not sold through this channel")
	ErrPerformanceMismatch = errors.New("performance does not belong to this venue")
	ErrShowTicketed        = errors.New("pay as you will is only for non-ticketed shows")
	ErrOtherPerformance    = errors.New("venue sales only sell the performance they were started for")
)

// InsufficientTicketsError is returned when a request asks for more tickets
// than a performance has left.  Its message is shown to users verbatim.
type InsufficientTicketsError struct {
	PerformanceID uint64
	Available     int
}

func (e *InsufficientTicketsError) Error() string {
	return fmt.Sprintf("There are only %d tickets available for this performance.", e.Available)
}

var invariants = []error{
	ErrSaleNotInProgress, ErrSaleNotPending, ErrSaleClosed, ErrRefundCompleted,
	ErrTicketRefunded, ErrEFringerRefund, ErrTicketNotSold, ErrPerformanceOpen,
	ErrPerformanceNotOpen, ErrPerformanceClosed, ErrFringerUnavailable,
	ErrBasketEmpty, ErrSaleEmpty, ErrOnlineSalesClosed, ErrWrongChannel, ErrPerformanceMismatch,
	ErrShowTicketed, ErrOtherPerformance,
}

// IsInvariant reports whether err is a domain rule violation rather than an
// infrastructure failure.
func IsInvariant(err error) bool {
	var insufficient *InsufficientTicketsError
	if errors.As(err, &insufficient) {
		return true
	}
	for _, e := range invariants {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
