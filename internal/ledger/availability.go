package ledger

import "github.com/iliyamo/festival-boxoffice/internal/model"

// Available returns capacity - sold + refunded floored at zero.  sold counts
// every ticket that has left a basket, refunded ones included, so a refund
// hands its seat back.  A venue without capacity has nothing to sell.
func Available(capacity *int, sold, refunded int) int {
	if capacity == nil {
		return 0
	}
	n := *capacity - sold + refunded
	if n < 0 {
		return 0
	}
	return n
}

// Snapshot packages the counts for one performance.
func Snapshot(performanceID uint64, capacity *int, sold, refunded int) model.Availability {
	return model.Availability{
		PerformanceID: performanceID,
		Capacity:      capacity,
		Sold:          sold,
		Refunded:      refunded,
		Available:     Available(capacity, sold, refunded),
	}
}

// Reserve checks that requested more tickets fit.  Requests of zero or less
// always fit.
func Reserve(a model.Availability, requested int) error {
	if requested > a.Available {
		return &InsufficientTicketsError{PerformanceID: a.PerformanceID, Available: a.Available}
	}
	return nil
}
