package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/ledger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// ReportRepo runs the read-only aggregate queries behind the reports.
// Times are UTC; a day is [00:00, 24:00).
type ReportRepo struct {
	db *sql.DB
}

// NewReportRepo returns a new ReportRepo bound to the given database.
func NewReportRepo(db *sql.DB) *ReportRepo { return &ReportRepo{db: db} }

// TicketTypeCount is one row of the tickets-by-type report.
type TicketTypeCount struct {
	PerformanceID uint64          `json:"performance_id"`
	StartsAt      time.Time       `json:"starts_at"`
	TicketType    string          `json:"ticket_type"`
	Count         int             `json:"count"`
	Value         decimal.Decimal `json:"value"`
}

// ChannelCount is one row of the tickets-by-channel report.
type ChannelCount struct {
	PerformanceID uint64    `json:"performance_id"`
	StartsAt      time.Time `json:"starts_at"`
	Online        int       `json:"online"`
	BoxOffice     int       `json:"boxoffice"`
	Venue         int       `json:"venue"`
	Total         int       `json:"total"`
}

// PaymentLine is one day and payment method of the payment summary.
type PaymentLine struct {
	Day    string                `json:"day"`
	Type   model.TransactionType `json:"-"`
	Method string                `json:"method"`
	Count  int                   `json:"count"`
	Amount decimal.Decimal       `json:"amount"`
	Fees   decimal.Decimal       `json:"fees"`
}

func dayRange(day time.Time) (time.Time, time.Time) {
	from := day.UTC().Truncate(24 * time.Hour)
	return from, from.Add(24 * time.Hour)
}

// DaySummary totals a box office's completed sales and refunds on one day.
func (r *ReportRepo) DaySummary(ctx context.Context, boxOfficeID uint64, day time.Time) (ledger.DaySummary, error) {
	var d ledger.DaySummary
	from, to := dayRange(day)
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(s.buttons), 0), COALESCE(SUM(s.amount), 0),
		 COALESCE(SUM((SELECT COUNT(*) FROM fringers f WHERE f.sale_id = s.id)), 0),
		 COALESCE(SUM((SELECT COUNT(*) FROM tickets t WHERE t.sale_id = s.id)), 0)
		 FROM sales s WHERE s.boxoffice_id = ? AND s.completed >= ? AND s.completed < ?`,
		boxOfficeID, from, to).
		Scan(&d.Sales.Count, &d.Sales.Buttons, &d.Sales.Total, &d.Sales.Fringers, &d.Sales.Tickets)
	if err != nil {
		return d, err
	}
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM refunds
		 WHERE boxoffice_id = ? AND completed >= ? AND completed < ?`, boxOfficeID, from, to).
		Scan(&d.Refunds.Count, &d.Refunds.Total)
	if err != nil {
		return d, err
	}
	d.Settle()
	return d, nil
}

// BoxOfficeTotals sums sales and refunds completed at a box office in
// [from, to).  Fringers counts paper fringers only.
func (r *ReportRepo) BoxOfficeTotals(ctx context.Context, boxOfficeID uint64, from, to time.Time) (sales, refunds ledger.Counts, err error) {
	sales, err = r.saleTotals(ctx, "boxoffice_id", boxOfficeID, from, to)
	if err != nil {
		return
	}
	err = r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE boxoffice_id = ? AND completed >= ? AND completed < ?`,
		boxOfficeID, from.UTC(), to.UTC()).Scan(&refunds.Cash)
	return
}

// VenueTotals sums sales completed at a venue in [from, to).
func (r *ReportRepo) VenueTotals(ctx context.Context, venueID uint64, from, to time.Time) (ledger.Counts, error) {
	return r.saleTotals(ctx, "venue_id", venueID, from, to)
}

// saleTotals counts what left the till in a window: cash from cash sales
// only, buttons and paper fringers from every completed sale, since card
// sales hand over stock too.
func (r *ReportRepo) saleTotals(ctx context.Context, column string, id uint64, from, to time.Time) (ledger.Counts, error) {
	var c ledger.Counts
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN s.transaction_type = ? THEN s.amount ELSE 0 END), 0),
		 COALESCE(SUM(s.buttons), 0),
		 COALESCE(SUM((SELECT COUNT(*) FROM fringers f WHERE f.sale_id = s.id AND f.user_id IS NULL)), 0)
		 FROM sales s WHERE s.`+column+` = ? AND s.completed >= ? AND s.completed < ?`,
		model.TransactionCash, id, from.UTC(), to.UTC()).
		Scan(&c.Cash, &c.Buttons, &c.Fringers)
	return c, err
}

// TicketsByType counts sold, unrefunded tickets per performance and type.
func (r *ReportRepo) TicketsByType(ctx context.Context, festivalID, showID uint64) ([]TicketTypeCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.starts_at, tt.name, COUNT(*), COALESCE(SUM(t.cost), 0)
		 FROM tickets t
		 JOIN performances p ON p.id = t.performance_id
		 JOIN shows s ON s.id = p.show_id
		 JOIN ticket_types tt ON tt.id = t.ticket_type_id
		 JOIN sales sa ON sa.id = t.sale_id
		 WHERE s.id = ? AND s.festival_id = ? AND sa.completed IS NOT NULL AND t.refund_id IS NULL
		 GROUP BY p.id, p.starts_at, tt.name, tt.seqno
		 ORDER BY p.starts_at, tt.seqno`, showID, festivalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TicketTypeCount
	for rows.Next() {
		var c TicketTypeCount
		if err := rows.Scan(&c.PerformanceID, &c.StartsAt, &c.TicketType, &c.Count, &c.Value); err != nil {
			return nil, err
		}
		c.StartsAt = c.StartsAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// TicketsByChannel counts sold, unrefunded tickets per performance and
// channel.  Performances with no tickets are listed with zeros.
func (r *ReportRepo) TicketsByChannel(ctx context.Context, festivalID, showID uint64) ([]ChannelCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.starts_at,
		 COALESCE(SUM(sa.id IS NOT NULL AND sa.boxoffice_id IS NULL AND sa.venue_id IS NULL), 0),
		 COALESCE(SUM(sa.boxoffice_id IS NOT NULL), 0),
		 COALESCE(SUM(sa.venue_id IS NOT NULL), 0)
		 FROM performances p
		 JOIN shows s ON s.id = p.show_id
		 LEFT JOIN tickets t ON t.performance_id = p.id AND t.refund_id IS NULL
		 LEFT JOIN sales sa ON sa.id = t.sale_id AND sa.completed IS NOT NULL
		 WHERE s.id = ? AND s.festival_id = ?
		 GROUP BY p.id, p.starts_at
		 ORDER BY p.starts_at`, showID, festivalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChannelCount
	for rows.Next() {
		var c ChannelCount
		if err := rows.Scan(&c.PerformanceID, &c.StartsAt, &c.Online, &c.BoxOffice, &c.Venue); err != nil {
			return nil, err
		}
		c.StartsAt = c.StartsAt.UTC()
		c.Total = c.Online + c.BoxOffice + c.Venue
		out = append(out, c)
	}
	return out, rows.Err()
}

// PaymentSummary groups completed sales by day and payment method.
func (r *ReportRepo) PaymentSummary(ctx context.Context, festivalID uint64, from, to time.Time) ([]PaymentLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DATE_FORMAT(completed, '%Y-%m-%d') AS day, COALESCE(transaction_type, 0), COUNT(*),
		 COALESCE(SUM(amount), 0), COALESCE(SUM(transaction_fee), 0)
		 FROM sales WHERE festival_id = ? AND completed >= ? AND completed < ?
		 GROUP BY day, transaction_type ORDER BY day, transaction_type`,
		festivalID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PaymentLine
	for rows.Next() {
		var l PaymentLine
		var tt int
		if err := rows.Scan(&l.Day, &tt, &l.Count, &l.Amount, &l.Fees); err != nil {
			return nil, err
		}
		l.Type = model.TransactionType(tt)
		l.Method = l.Type.String()
		out = append(out, l)
	}
	return out, rows.Err()
}
