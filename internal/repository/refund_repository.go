package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// RefundRepo manages refunds.  Tickets point at their refund; deleting a
// refund releases them through ON DELETE SET NULL.
type RefundRepo struct {
	db *sql.DB
}

// NewRefundRepo returns a new RefundRepo bound to the given database.
func NewRefundRepo(db *sql.DB) *RefundRepo { return &RefundRepo{db: db} }

// DB exposes the underlying sql.DB for transactions spanning repositories.
func (r *RefundRepo) DB() *sql.DB { return r.db }

const refundSelect = `SELECT id, uuid, festival_id, boxoffice_id, user_id, customer, amount,
	COALESCE(reason, ''), completed, created_at FROM refunds`

func scanRefund(row scanner) (model.Refund, error) {
	var r model.Refund
	var boxOffice sql.NullInt64
	var completed sql.NullTime
	err := row.Scan(&r.ID, &r.UUID, &r.FestivalID, &boxOffice, &r.UserID, &r.Customer, &r.Amount,
		&r.Reason, &completed, &r.CreatedAt)
	r.BoxOfficeID = u64Ptr(boxOffice)
	r.Completed = timePtr(completed)
	r.CreatedAt = r.CreatedAt.UTC()
	return r, err
}

// CreateTx inserts a refund.
func (r *RefundRepo) CreateTx(ctx context.Context, tx *sql.Tx, ref *model.Refund) error {
	ref.UUID = newUUID()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO refunds (uuid, festival_id, boxoffice_id, user_id, customer, amount, reason, completed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ref.UUID, ref.FestivalID, ref.BoxOfficeID, ref.UserID, ref.Customer, ref.Amount, ref.Reason, ref.Completed)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := scanRefund(tx.QueryRowContext(ctx, refundSelect+" WHERE id = ?", id))
	if err != nil {
		return err
	}
	*ref = created
	return nil
}

// GetByUUID loads a refund of the festival.
func (r *RefundRepo) GetByUUID(ctx context.Context, festivalID uint64, uuid string) (model.Refund, error) {
	ref, err := scanRefund(r.db.QueryRowContext(ctx, refundSelect+" WHERE uuid = ? AND festival_id = ?", uuid, festivalID))
	return ref, notFound(err)
}

// GetByUUIDForUpdateTx loads and locks a refund.
func (r *RefundRepo) GetByUUIDForUpdateTx(ctx context.Context, tx *sql.Tx, festivalID uint64, uuid string) (model.Refund, error) {
	ref, err := scanRefund(tx.QueryRowContext(ctx, refundSelect+" WHERE uuid = ? AND festival_id = ? FOR UPDATE", uuid, festivalID))
	return ref, notFound(err)
}

// UpdateTx writes back amount, reason, customer and completion time.
func (r *RefundRepo) UpdateTx(ctx context.Context, tx *sql.Tx, ref *model.Refund) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE refunds SET customer = ?, amount = ?, reason = ?, completed = ? WHERE id = ?",
		ref.Customer, ref.Amount, ref.Reason, ref.Completed, ref.ID)
	return err
}

// DeleteTx releases the refund's tickets and removes it.
func (r *RefundRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	if _, err := tx.ExecContext(ctx, "UPDATE tickets SET refund_id = NULL WHERE refund_id = ?", id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM refunds WHERE id = ?", id)
	return err
}

// TicketCostsTx returns the captured cost of every ticket in a refund.
func (r *RefundRepo) TicketCostsTx(ctx context.Context, q querier, id uint64) ([]decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, "SELECT cost FROM tickets WHERE refund_id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []decimal.Decimal
	for rows.Next() {
		var c decimal.Decimal
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
