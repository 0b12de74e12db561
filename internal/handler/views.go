package handler

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/ledger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// saleView is a sale with its items and derived totals.
type saleView struct {
	model.Sale
	State      ledger.SaleState     `json:"state"`
	Contents   model.SaleContents   `json:"contents"`
	Tickets    []model.Ticket       `json:"tickets"`
	Fringers   []model.Fringer      `json:"fringers"`
	PAYW       []model.PayAsYouWill `json:"payw"`
	ButtonCost decimal.Decimal      `json:"button_cost"`
	Total      decimal.Decimal      `json:"total"`
}

func (s *Store) saleView(ctx context.Context, q querier, sale model.Sale, f model.Festival) (saleView, error) {
	v := saleView{Sale: sale, State: ledger.StateOf(sale)}
	var err error
	if v.Contents, err = s.Sales.ContentsTx(ctx, q, sale.ID); err != nil {
		return v, err
	}
	if v.Tickets, err = s.Tickets.ListBySaleTx(ctx, q, sale.ID); err != nil {
		return v, err
	}
	if v.Fringers, err = s.Fringers.ListBySaleTx(ctx, q, sale.ID); err != nil {
		return v, err
	}
	if v.PAYW, err = s.PAYW.ListBySaleTx(ctx, q, sale.ID); err != nil {
		return v, err
	}
	v.ButtonCost = f.ButtonPrice.Mul(decimal.NewFromInt(int64(sale.Buttons)))
	v.Total = ledger.SaleTotal(sale, v.Contents, f.ButtonPrice)
	return v, nil
}

// refundView is a refund with its tickets.
type refundView struct {
	model.Refund
	Tickets []model.Ticket  `json:"tickets"`
	Total   decimal.Decimal `json:"total"`
}

func (s *Store) refundView(ctx context.Context, q querier, r model.Refund) (refundView, error) {
	tickets, err := s.Tickets.ListByRefundTx(ctx, q, r.ID)
	if err != nil {
		return refundView{}, err
	}
	costs := make([]decimal.Decimal, len(tickets))
	for i, t := range tickets {
		costs[i] = t.Cost
	}
	return refundView{Refund: r, Tickets: tickets, Total: ledger.RefundTotal(costs)}, nil
}

// basketView is the customer's basket.
type basketView struct {
	model.Basket
	Contents   model.SaleContents `json:"contents"`
	Tickets    []model.Ticket     `json:"tickets"`
	Fringers   []model.Fringer    `json:"fringers"`
	ButtonCost decimal.Decimal    `json:"button_cost"`
	Total      decimal.Decimal    `json:"total"`
}

func (s *Store) basketView(ctx context.Context, q querier, userID uint64, f model.Festival) (basketView, error) {
	b, err := s.Baskets.Get(ctx, q, userID)
	if err != nil {
		return basketView{}, err
	}
	v := basketView{Basket: b}
	if v.Contents, err = s.Baskets.ContentsTx(ctx, q, userID); err != nil {
		return v, err
	}
	if v.Tickets, err = s.Tickets.ListByBasket(ctx, q, userID); err != nil {
		return v, err
	}
	if v.Fringers, err = s.Fringers.ListByBasket(ctx, q, userID); err != nil {
		return v, err
	}
	v.ButtonCost = f.ButtonPrice.Mul(decimal.NewFromInt(int64(b.Buttons)))
	v.Total = ledger.BasketTotal(b, v.Contents, f.ButtonPrice)
	return v, nil
}

// ticketDescription names a ticket the way receipts and checkout pages show it.
func ticketDescription(t model.Ticket) string {
	return fmt.Sprintf("%s, %s, %s", t.ShowName, t.StartsAt.Format("Mon 2 Jan 15:04"), t.TypeName)
}

// ticketLines groups tickets by performance and type, keeping first-seen order.
func ticketLines(tickets []model.Ticket) []model.ReceiptLine {
	type key struct {
		perf, typ uint64
	}
	index := map[key]int{}
	var lines []model.ReceiptLine
	for _, t := range tickets {
		k := key{t.PerformanceID, t.TicketTypeID}
		i, ok := index[k]
		if !ok {
			i = len(lines)
			index[k] = i
			lines = append(lines, model.ReceiptLine{Description: ticketDescription(t)})
		}
		lines[i].Quantity++
		lines[i].Amount = lines[i].Amount.Add(t.Cost)
	}
	return lines
}

func fringerLines(fringers []model.Fringer) []model.ReceiptLine {
	index := map[uint64]int{}
	var lines []model.ReceiptLine
	for _, f := range fringers {
		i, ok := index[f.FringerTypeID]
		if !ok {
			i = len(lines)
			index[f.FringerTypeID] = i
			lines = append(lines, model.ReceiptLine{Description: f.TypeName})
		}
		lines[i].Quantity++
		lines[i].Amount = lines[i].Amount.Add(f.Cost)
	}
	return lines
}

// saleReceipt renders a sale for the receipt mail and PDF.
func saleReceipt(f model.Festival, v saleView) model.Receipt {
	r := model.Receipt{
		Kind:      model.ReceiptSale,
		Festival:  f.Name,
		Reference: v.UUID,
		Customer:  v.Customer,
		Total:     v.Total,
		Date:      v.CreatedAt,
	}
	if v.Completed != nil {
		r.Date = *v.Completed
		r.Total = v.Amount
	}
	if v.TransactionType != nil {
		r.Method = v.TransactionType.String()
	}
	r.Lines = append(r.Lines, ticketLines(v.Tickets)...)
	r.Lines = append(r.Lines, fringerLines(v.Fringers)...)
	for _, p := range v.PAYW {
		r.Lines = append(r.Lines, model.ReceiptLine{Description: p.ShowName + " (pay as you will)", Quantity: 1, Amount: p.Amount})
	}
	if v.Buttons > 0 {
		r.Lines = append(r.Lines, model.ReceiptLine{Description: "Buttons", Quantity: v.Buttons, Amount: v.ButtonCost})
	}
	if v.Donation.IsPositive() {
		r.Lines = append(r.Lines, model.ReceiptLine{Description: "Donation", Quantity: 1, Amount: v.Donation})
	}
	return r
}

// refundReceipt renders a refund for the receipt mail and PDF.
func refundReceipt(f model.Festival, v refundView) model.Receipt {
	r := model.Receipt{
		Kind:      model.ReceiptRefund,
		Festival:  f.Name,
		Reference: v.UUID,
		Customer:  v.Customer,
		Method:    model.TransactionCash.String(),
		Lines:     ticketLines(v.Tickets),
		Total:     v.Total,
		Date:      v.CreatedAt,
	}
	if v.Completed != nil {
		r.Date = *v.Completed
		r.Total = v.Amount
	}
	if v.BoxOfficeID == nil {
		r.Method = "Online cancellation"
	}
	return r
}
