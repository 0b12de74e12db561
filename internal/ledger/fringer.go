package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// FringerAvailable is the remaining credit: shows - used.
func FringerAvailable(f model.Fringer) int { return f.Shows - f.Used }

// CheckFringer validates redeeming a fringer for a performance.  The fringer
// must be paid for, have credit left and not already hold a live ticket for
// the same performance.
func CheckFringer(f model.Fringer, usedForPerformance bool) error {
	if f.SaleID == nil || !f.SaleCompleted {
		return ErrFringerUnavailable
	}
	if FringerAvailable(f) <= 0 || usedForPerformance {
		return ErrFringerUnavailable
	}
	return nil
}

// DefaultFringerName names a new eFringer after how many the user has.
func DefaultFringerName(owned int) string { return fmt.Sprintf("eFringer%d", owned+1) }

// BasketTotal is tickets + fringers + buttons.
func BasketTotal(b model.Basket, c model.SaleContents, buttonPrice decimal.Decimal) decimal.Decimal {
	return c.TicketCost.Add(c.FringerCost).Add(buttonPrice.Mul(decimal.NewFromInt(int64(b.Buttons))))
}

// BasketEmpty reports whether checkout has anything to move.
func BasketEmpty(b model.Basket, c model.SaleContents) bool {
	return b.Buttons == 0 && c.TicketCount == 0 && c.FringerCount == 0
}
