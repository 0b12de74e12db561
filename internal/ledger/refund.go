package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// RequireRefundOpen guards ticket add/remove and cancellation.
func RequireRefundOpen(r model.Refund) error {
	if r.Completed != nil {
		return ErrRefundCompleted
	}
	return nil
}

// CheckRefundable validates a ticket before it joins a refund.  Box office
// refunds reject eFringer tickets; online self-service cancellation allows
// them so the fringer credit comes back.
func CheckRefundable(t model.Ticket, allowEFringer bool) error {
	if t.RefundID != nil {
		return ErrTicketRefunded
	}
	if !allowEFringer && t.IsEFringer() {
		return ErrEFringerRefund
	}
	if t.SaleID == nil || !t.SaleCompleted {
		return ErrTicketNotSold
	}
	return nil
}

// RefundTotal sums ticket costs.
func RefundTotal(costs []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, c := range costs {
		total = total.Add(c)
	}
	return total
}

// CompleteRefund snapshots the amount and sets the timestamp.  On an
// already completed refund it changes nothing and reports repeat=true so
// the caller can log it and re-save.
func CompleteRefund(r *model.Refund, total decimal.Decimal, reason string, now time.Time) (repeat bool) {
	if r.Completed != nil {
		return true
	}
	r.Amount = total
	if reason != "" {
		r.Reason = reason
	}
	completed := now.UTC()
	r.Completed = &completed
	return false
}
