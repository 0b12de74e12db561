package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// TicketRepo manages ticket rows.  A ticket lives in exactly one container
// at a time: a basket while shopping online, then a sale; a refund may
// additionally claim a sold ticket.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// DB exposes the underlying sql.DB for transactions spanning repositories.
func (r *TicketRepo) DB() *sql.DB { return r.db }

const ticketSelect = `SELECT t.id, t.uuid, t.performance_id, s.name, p.starts_at, t.ticket_type_id, tt.name,
	t.user_id, t.cost, t.basket_user_id, t.fringer_id, f.user_id, t.sale_id, (sa.completed IS NOT NULL),
	sa.boxoffice_id, sa.venue_id, t.refund_id, t.token_issued,
	COALESCE(NULLIF(sa.customer, ''), u.email, ''), t.created_at
	FROM tickets t
	JOIN performances p ON p.id = t.performance_id
	JOIN shows s ON s.id = p.show_id
	JOIN ticket_types tt ON tt.id = t.ticket_type_id
	LEFT JOIN fringers f ON f.id = t.fringer_id
	LEFT JOIN sales sa ON sa.id = t.sale_id
	LEFT JOIN users u ON u.id = t.user_id`

func scanTicket(row scanner) (model.Ticket, error) {
	var t model.Ticket
	var user, basket, fringer, fringerUser, sale, boxOffice, venue, refund sql.NullInt64
	err := row.Scan(&t.ID, &t.UUID, &t.PerformanceID, &t.ShowName, &t.StartsAt, &t.TicketTypeID, &t.TypeName,
		&user, &t.Cost, &basket, &fringer, &fringerUser, &sale, &t.SaleCompleted,
		&boxOffice, &venue, &refund, &t.TokenIssued, &t.Customer, &t.CreatedAt)
	if err != nil {
		return t, err
	}
	t.UserID = u64Ptr(user)
	t.BasketUserID = u64Ptr(basket)
	t.FringerID = u64Ptr(fringer)
	t.FringerUserID = u64Ptr(fringerUser)
	t.SaleID = u64Ptr(sale)
	t.SaleBoxOffice = u64Ptr(boxOffice)
	t.SaleVenue = u64Ptr(venue)
	t.RefundID = u64Ptr(refund)
	t.StartsAt = t.StartsAt.UTC()
	return t, nil
}

// CreateTx inserts a ticket.  Cost must already be captured by the caller.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Ticket) error {
	t.UUID = newUUID()
	const q = `INSERT INTO tickets (uuid, performance_id, ticket_type_id, user_id, cost, basket_user_id, fringer_id, sale_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, t.UUID, t.PerformanceID, t.TicketTypeID, t.UserID, t.Cost,
		t.BasketUserID, t.FringerID, t.SaleID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	t.ID = uint64(id)
	return err
}

// GetForUpdateTx loads and locks a ticket of the festival.
func (r *TicketRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, festivalID, id uint64) (model.Ticket, error) {
	t, err := scanTicket(tx.QueryRowContext(ctx, ticketSelect+" WHERE t.id = ? AND s.festival_id = ? FOR UPDATE OF t", id, festivalID))
	return t, notFound(err)
}

// ListBySaleTx lists a sale's tickets grouped by performance.
func (r *TicketRepo) ListBySaleTx(ctx context.Context, q querier, saleID uint64) ([]model.Ticket, error) {
	return r.list(ctx, q, ticketSelect+" WHERE t.sale_id = ? ORDER BY p.starts_at, t.id", saleID)
}

// ListByBasket lists the tickets in a user's basket.
func (r *TicketRepo) ListByBasket(ctx context.Context, q querier, userID uint64) ([]model.Ticket, error) {
	return r.list(ctx, q, ticketSelect+" WHERE t.basket_user_id = ? ORDER BY p.starts_at, t.id", userID)
}

// ListByRefundTx lists the tickets claimed by a refund.
func (r *TicketRepo) ListByRefundTx(ctx context.Context, q querier, refundID uint64) ([]model.Ticket, error) {
	return r.list(ctx, q, ticketSelect+" WHERE t.refund_id = ? ORDER BY p.starts_at, t.id", refundID)
}

// ListByUser lists the user's paid tickets, refunded ones included.
func (r *TicketRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	return r.list(ctx, r.db, ticketSelect+" WHERE t.user_id = ? AND sa.completed IS NOT NULL ORDER BY p.starts_at, t.id", userID)
}

// ListAdmission lists every ticket that has left a basket for a
// performance.  Refunded tickets are included so door staff can see them.
func (r *TicketRepo) ListAdmission(ctx context.Context, festivalID, performanceID uint64) ([]model.Ticket, error) {
	return r.list(ctx, r.db, ticketSelect+` WHERE t.performance_id = ? AND s.festival_id = ?
		AND t.basket_user_id IS NULL AND (sa.completed IS NOT NULL OR t.refund_id IS NOT NULL)
		ORDER BY t.id`, performanceID, festivalID)
}

func (r *TicketRepo) list(ctx context.Context, q querier, query string, args ...any) ([]model.Ticket, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteFromSaleTx removes one ticket from a sale.  It returns ErrNotFound
// when the ticket is not in the sale.
func (r *TicketRepo) DeleteFromSaleTx(ctx context.Context, tx *sql.Tx, saleID, ticketID uint64) error {
	return affected(tx.ExecContext(ctx, "DELETE FROM tickets WHERE id = ? AND sale_id = ?", ticketID, saleID))
}

// DeletePerformanceFromSaleTx removes all of a sale's tickets for one performance.
func (r *TicketRepo) DeletePerformanceFromSaleTx(ctx context.Context, tx *sql.Tx, saleID, performanceID uint64) error {
	return affected(tx.ExecContext(ctx, "DELETE FROM tickets WHERE sale_id = ? AND performance_id = ?", saleID, performanceID))
}

// DeleteFromBasketTx removes one ticket from a basket.
func (r *TicketRepo) DeleteFromBasketTx(ctx context.Context, tx *sql.Tx, userID, ticketID uint64) error {
	return affected(tx.ExecContext(ctx, "DELETE FROM tickets WHERE id = ? AND basket_user_id = ?", ticketID, userID))
}

// DeletePerformanceFromBasketTx removes a basket's tickets for one performance.
func (r *TicketRepo) DeletePerformanceFromBasketTx(ctx context.Context, tx *sql.Tx, userID, performanceID uint64) error {
	return affected(tx.ExecContext(ctx, "DELETE FROM tickets WHERE basket_user_id = ? AND performance_id = ?", userID, performanceID))
}

// SetRefundTx attaches a ticket to a refund, or releases it when refundID is nil.
func (r *TicketRepo) SetRefundTx(ctx context.Context, tx *sql.Tx, ticketID uint64, refundID *uint64) error {
	_, err := tx.ExecContext(ctx, "UPDATE tickets SET refund_id = ? WHERE id = ?", refundID, ticketID)
	return err
}

// ReleaseRefundTx detaches one ticket from a refund.
func (r *TicketRepo) ReleaseRefundTx(ctx context.Context, tx *sql.Tx, refundID, ticketID uint64) error {
	return affected(tx.ExecContext(ctx, "UPDATE tickets SET refund_id = NULL WHERE id = ? AND refund_id = ?", ticketID, refundID))
}

// FringerUsedForPerformanceTx reports whether a fringer already holds a
// live ticket for the performance.
func (r *TicketRepo) FringerUsedForPerformanceTx(ctx context.Context, q querier, fringerID, performanceID uint64) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tickets WHERE fringer_id = ? AND performance_id = ? AND refund_id IS NULL",
		fringerID, performanceID).Scan(&n)
	return n > 0, err
}

// affected turns a zero-row write into ErrNotFound.
func affected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
