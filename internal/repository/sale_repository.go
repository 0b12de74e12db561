package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// SaleRepo provides access to sales and moves items between a sale and a
// user's basket.  A sale is always loaded with FOR UPDATE before any state
// change so that two clerks cannot complete the same sale twice.
type SaleRepo struct {
	db *sql.DB
}

// NewSaleRepo returns a new SaleRepo bound to the given database.
func NewSaleRepo(db *sql.DB) *SaleRepo { return &SaleRepo{db: db} }

// DB exposes the underlying sql.DB for transactions spanning repositories.
func (r *SaleRepo) DB() *sql.DB { return r.db }

const saleSelect = `SELECT id, uuid, festival_id, boxoffice_id, venue_id, performance_id, user_id, customer, buttons,
	donation, amount, completed, cancelled, transaction_id, transaction_type, transaction_fee,
	COALESCE(notes, ''), created_at FROM sales`

func scanSale(row scanner) (model.Sale, error) {
	var s model.Sale
	var boxOffice, venue, perf sql.NullInt64
	var completed, cancelled sql.NullTime
	var txID sql.NullString
	var txType sql.NullInt16
	err := row.Scan(&s.ID, &s.UUID, &s.FestivalID, &boxOffice, &venue, &perf, &s.UserID, &s.Customer, &s.Buttons,
		&s.Donation, &s.Amount, &completed, &cancelled, &txID, &txType, &s.TransactionFee,
		&s.Notes, &s.CreatedAt)
	if err != nil {
		return s, err
	}
	s.BoxOfficeID = u64Ptr(boxOffice)
	s.VenueID = u64Ptr(venue)
	s.PerformanceID = u64Ptr(perf)
	s.Completed = timePtr(completed)
	s.Cancelled = timePtr(cancelled)
	s.TransactionID = strPtr(txID)
	if txType.Valid {
		tt := model.TransactionType(txType.Int16)
		s.TransactionType = &tt
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

// CreateTx inserts a new sale and reads back its generated columns.
func (r *SaleRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Sale) error {
	s.UUID = newUUID()
	const q = `INSERT INTO sales (uuid, festival_id, boxoffice_id, venue_id, performance_id, user_id, customer, buttons,
		donation, amount, completed, transaction_id, transaction_type, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.UUID, s.FestivalID, s.BoxOfficeID, s.VenueID, s.PerformanceID, s.UserID, s.Customer,
		s.Buttons, s.Donation, s.Amount, s.Completed, s.TransactionID, s.TransactionType, s.Notes)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := scanSale(tx.QueryRowContext(ctx, saleSelect+" WHERE id = ?", id))
	if err != nil {
		return err
	}
	*s = created
	return nil
}

// GetByUUID loads a sale of the festival without locking.
func (r *SaleRepo) GetByUUID(ctx context.Context, festivalID uint64, uuid string) (model.Sale, error) {
	s, err := scanSale(r.db.QueryRowContext(ctx, saleSelect+" WHERE uuid = ? AND festival_id = ?", uuid, festivalID))
	return s, notFound(err)
}

// GetByUUIDForUpdateTx loads and locks a sale.
func (r *SaleRepo) GetByUUIDForUpdateTx(ctx context.Context, tx *sql.Tx, festivalID uint64, uuid string) (model.Sale, error) {
	s, err := scanSale(tx.QueryRowContext(ctx, saleSelect+" WHERE uuid = ? AND festival_id = ? FOR UPDATE", uuid, festivalID))
	return s, notFound(err)
}

// UpdateTx writes back every mutable column of a sale.
func (r *SaleRepo) UpdateTx(ctx context.Context, tx *sql.Tx, s *model.Sale) error {
	const q = `UPDATE sales SET customer = ?, buttons = ?, donation = ?, amount = ?, completed = ?, cancelled = ?,
		transaction_id = ?, transaction_type = ?, transaction_fee = ?, notes = ? WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, s.Customer, s.Buttons, s.Donation, s.Amount, s.Completed, s.Cancelled,
		s.TransactionID, s.TransactionType, s.TransactionFee, s.Notes, s.ID)
	return err
}

// ContentsTx aggregates the tickets, fringers and PAYW entries of a sale.
func (r *SaleRepo) ContentsTx(ctx context.Context, q querier, saleID uint64) (model.SaleContents, error) {
	return contents(ctx, q, "sale_id", saleID)
}

// contents aggregates children held by either a sale or a basket; column
// is sale_id or basket_user_id.  Baskets never hold PAYW entries.
func contents(ctx context.Context, q querier, column string, id uint64) (model.SaleContents, error) {
	var c model.SaleContents
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(cost), 0) FROM tickets WHERE `+column+` = ?`, id).
		Scan(&c.TicketCount, &c.TicketCost)
	if err != nil {
		return c, err
	}
	err = q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(cost), 0) FROM fringers WHERE `+column+` = ?`, id).
		Scan(&c.FringerCount, &c.FringerCost)
	if err != nil || column != "sale_id" {
		return c, err
	}
	err = q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM payw WHERE sale_id = ?`, id).
		Scan(&c.PAYWCount, &c.PAYWCost)
	return c, err
}

// ReleaseItemsTx deletes the tickets, PAYW entries and fringers held by a
// sale, returning its tickets to the performance's availability.  Tickets
// and PAYW go before fringers since they may reference a fringer of the
// same sale.
func (r *SaleRepo) ReleaseItemsTx(ctx context.Context, tx *sql.Tx, saleID uint64) error {
	for _, q := range []string{
		"DELETE FROM tickets WHERE sale_id = ?",
		"DELETE FROM payw WHERE sale_id = ?",
		"DELETE FROM fringers WHERE sale_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, saleID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTx removes a sale and everything it holds.
func (r *SaleRepo) DeleteTx(ctx context.Context, tx *sql.Tx, saleID uint64) error {
	if err := r.ReleaseItemsTx(ctx, tx, saleID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM sales WHERE id = ?", saleID)
	return err
}

// DeleteIncompleteAtBoxOfficeTx clears the clerk's unfinished sales and
// refunds at a box office.  Refunded tickets are released back to their sale.
func (r *SaleRepo) DeleteIncompleteAtBoxOfficeTx(ctx context.Context, tx *sql.Tx, userID, boxOfficeID uint64) (sales, refunds int, err error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM sales WHERE user_id = ? AND boxoffice_id = ? AND completed IS NULL AND cancelled IS NULL FOR UPDATE`,
		userID, boxOfficeID)
	if err != nil {
		return 0, 0, err
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return 0, 0, err
	}
	for _, id := range ids {
		if err := r.DeleteTx(ctx, tx, id); err != nil {
			return 0, 0, err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE tickets t JOIN refunds r ON r.id = t.refund_id SET t.refund_id = NULL
		 WHERE r.user_id = ? AND r.boxoffice_id = ? AND r.completed IS NULL`, userID, boxOfficeID); err != nil {
		return 0, 0, err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM refunds WHERE user_id = ? AND boxoffice_id = ? AND completed IS NULL`, userID, boxOfficeID)
	if err != nil {
		return 0, 0, err
	}
	n, _ := res.RowsAffected()
	return len(ids), int(n), nil
}

// ListIncompleteOnlineTx locks the user's online sales that were never paid.
func (r *SaleRepo) ListIncompleteOnlineTx(ctx context.Context, tx *sql.Tx, userID uint64) ([]model.Sale, error) {
	return r.list(ctx, tx, saleSelect+` WHERE user_id = ? AND boxoffice_id IS NULL AND venue_id IS NULL
		AND completed IS NULL AND cancelled IS NULL FOR UPDATE`, userID)
}

// ListStaleOnline returns online sales left unpaid since before cutoff.
func (r *SaleRepo) ListStaleOnline(ctx context.Context, cutoff time.Time) ([]model.Sale, error) {
	return r.list(ctx, r.db, saleSelect+` WHERE boxoffice_id IS NULL AND venue_id IS NULL
		AND completed IS NULL AND cancelled IS NULL AND created_at < ? ORDER BY id`, cutoff.UTC())
}

// ListByUser lists the user's completed online sales, newest first.
func (r *SaleRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Sale, error) {
	return r.list(ctx, r.db, saleSelect+` WHERE user_id = ? AND boxoffice_id IS NULL AND venue_id IS NULL
		AND completed IS NOT NULL ORDER BY completed DESC`, userID)
}

func (r *SaleRepo) list(ctx context.Context, q querier, query string, args ...any) ([]model.Sale, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReturnToBasketTx moves a sale's tickets, fringers and buttons back into
// the owner's basket.  The sale row itself is left to the caller.
func (r *SaleRepo) ReturnToBasketTx(ctx context.Context, tx *sql.Tx, s model.Sale) error {
	if _, err := tx.ExecContext(ctx,
		"UPDATE tickets SET basket_user_id = ?, sale_id = NULL WHERE sale_id = ?", s.UserID, s.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE fringers SET basket_user_id = ?, sale_id = NULL WHERE sale_id = ?", s.UserID, s.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE baskets SET buttons = buttons + ? WHERE user_id = ?", s.Buttons, s.UserID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "UPDATE sales SET buttons = 0 WHERE id = ?", s.ID)
	return err
}

// TakeBasketTx moves everything in the user's basket into the sale and
// returns the number of buttons taken.
func (r *SaleRepo) TakeBasketTx(ctx context.Context, tx *sql.Tx, userID, saleID uint64) (int, error) {
	var buttons int
	if err := tx.QueryRowContext(ctx, "SELECT buttons FROM baskets WHERE user_id = ? FOR UPDATE", userID).Scan(&buttons); err != nil {
		return 0, notFound(err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE tickets SET sale_id = ?, basket_user_id = NULL WHERE basket_user_id = ?", saleID, userID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE fringers SET sale_id = ?, basket_user_id = NULL WHERE basket_user_id = ?", saleID, userID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE baskets SET buttons = 0 WHERE user_id = ?", userID); err != nil {
		return 0, err
	}
	_, err := tx.ExecContext(ctx, "UPDATE sales SET buttons = ? WHERE id = ?", buttons, saleID)
	return buttons, err
}

func collectIDs(rows *sql.Rows) ([]uint64, error) {
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AbandonOnlineTx returns an unpaid online sale's items to the basket and
// marks the sale cancelled.
func (r *SaleRepo) AbandonOnlineTx(ctx context.Context, tx *sql.Tx, s *model.Sale, now time.Time) error {
	if err := r.ReturnToBasketTx(ctx, tx, *s); err != nil {
		return err
	}
	cancelled := now.UTC()
	s.Cancelled = &cancelled
	s.Buttons = 0
	_, err := tx.ExecContext(ctx, "UPDATE sales SET cancelled = ? WHERE id = ?", s.Cancelled, s.ID)
	return err
}
