package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// CanOpen allows opening a performance that has neither checkpoint.
func CanOpen(open, close *model.Checkpoint) error {
	if open != nil {
		return ErrPerformanceOpen
	}
	if close != nil {
		return ErrPerformanceClosed
	}
	return nil
}

// CanClose requires an open checkpoint and no close checkpoint.  Venue sales
// use the same rule.
func CanClose(open, close *model.Checkpoint) error {
	if open == nil {
		return ErrPerformanceNotOpen
	}
	if close != nil {
		return ErrPerformanceClosed
	}
	return nil
}

// Counts is one set of reconciled quantities.
type Counts struct {
	Cash     decimal.Decimal `json:"cash"`
	Buttons  int             `json:"buttons"`
	Fringers int             `json:"fringers"`
}

// CountsOf reads the counted quantities off a checkpoint.
func CountsOf(cp model.Checkpoint) Counts {
	return Counts{Cash: cp.Cash, Buttons: cp.Buttons, Fringers: cp.Fringers}
}

// Variance is close - open - sales + refunds for each quantity.
func Variance(open, close, sales, refunds Counts) Counts {
	return Counts{
		Cash:     close.Cash.Sub(open.Cash).Sub(sales.Cash).Add(refunds.Cash),
		Buttons:  close.Buttons - open.Buttons - sales.Buttons + refunds.Buttons,
		Fringers: close.Fringers - open.Fringers - sales.Fringers + refunds.Fringers,
	}
}

// Period is the stretch between two consecutive checkpoints.
type Period struct {
	Open     model.Checkpoint `json:"open"`
	Close    model.Checkpoint `json:"close"`
	Sales    Counts           `json:"sales"`
	Refunds  Counts           `json:"refunds"`
	Variance Counts           `json:"variance"`
}

// Periods pairs consecutive checkpoints in creation order: the first
// checkpoint of a day only opens a period.
func Periods(checkpoints []model.Checkpoint) []Period {
	cps := append([]model.Checkpoint(nil), checkpoints...)
	sort.SliceStable(cps, func(i, j int) bool { return cps[i].CreatedAt.Before(cps[j].CreatedAt) })
	var out []Period
	for i := 1; i < len(cps); i++ {
		out = append(out, Period{Open: cps[i-1], Close: cps[i]})
	}
	return out
}

// Reconcile fills in the variance once sales and refunds are known.
func (p *Period) Reconcile(sales, refunds Counts) {
	p.Sales = sales
	p.Refunds = refunds
	p.Variance = Variance(CountsOf(p.Open), CountsOf(p.Close), sales, refunds)
}

// DaySummary is the box office end-of-day figure.
type DaySummary struct {
	Sales struct {
		Count    int             `json:"count"`
		Buttons  int             `json:"buttons"`
		Fringers int             `json:"fringers"`
		Tickets  int             `json:"tickets"`
		Total    decimal.Decimal `json:"total"`
	} `json:"sales"`
	Refunds struct {
		Count int             `json:"count"`
		Total decimal.Decimal `json:"total"`
	} `json:"refunds"`
	Balance decimal.Decimal `json:"balance"`
}

// Settle computes the balance: sales taken less refunds paid out.
func (d *DaySummary) Settle() { d.Balance = d.Sales.Total.Sub(d.Refunds.Total) }
