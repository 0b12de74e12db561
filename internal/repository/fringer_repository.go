package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// FringerRepo manages fringer vouchers.  Usage counts are computed on read
// from live tickets and PAYW entries redeemed against each fringer.
type FringerRepo struct {
	db *sql.DB
}

// NewFringerRepo returns a new FringerRepo bound to the given database.
func NewFringerRepo(db *sql.DB) *FringerRepo { return &FringerRepo{db: db} }

const fringerSelect = `SELECT f.id, f.uuid, f.user_id, f.fringer_type_id, ft.name, f.name, f.cost,
	f.basket_user_id, f.sale_id, (sa.completed IS NOT NULL), ft.shows,
	(SELECT COUNT(*) FROM tickets t WHERE t.fringer_id = f.id AND t.refund_id IS NULL) +
	(SELECT COUNT(*) FROM payw w WHERE w.fringer_id = f.id),
	f.created_at
	FROM fringers f
	JOIN fringer_types ft ON ft.id = f.fringer_type_id
	LEFT JOIN sales sa ON sa.id = f.sale_id`

func scanFringer(row scanner) (model.Fringer, error) {
	var f model.Fringer
	var user, basket, sale sql.NullInt64
	err := row.Scan(&f.ID, &f.UUID, &user, &f.FringerTypeID, &f.TypeName, &f.Name, &f.Cost,
		&basket, &sale, &f.SaleCompleted, &f.Shows, &f.Used, &f.CreatedAt)
	f.UserID = u64Ptr(user)
	f.BasketUserID = u64Ptr(basket)
	f.SaleID = u64Ptr(sale)
	return f, err
}

// CreateTx inserts a fringer.  Cost must already be captured by the caller.
func (r *FringerRepo) CreateTx(ctx context.Context, tx *sql.Tx, f *model.Fringer) error {
	f.UUID = newUUID()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO fringers (uuid, user_id, fringer_type_id, name, cost, basket_user_id, sale_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.UUID, f.UserID, f.FringerTypeID, f.Name, f.Cost, f.BasketUserID, f.SaleID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	f.ID = uint64(id)
	return err
}

// GetForUpdateTx loads and locks a fringer of the festival.
func (r *FringerRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, festivalID, id uint64) (model.Fringer, error) {
	f, err := scanFringer(tx.QueryRowContext(ctx, fringerSelect+" WHERE f.id = ? AND ft.festival_id = ? FOR UPDATE OF f", id, festivalID))
	return f, notFound(err)
}

// ListByUser lists the user's paid eFringers.
func (r *FringerRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Fringer, error) {
	return r.list(ctx, r.db, fringerSelect+" WHERE f.user_id = ? AND sa.completed IS NOT NULL ORDER BY f.name, f.id", userID)
}

// ListByBasket lists the fringers waiting in a basket.
func (r *FringerRepo) ListByBasket(ctx context.Context, q querier, userID uint64) ([]model.Fringer, error) {
	return r.list(ctx, q, fringerSelect+" WHERE f.basket_user_id = ? ORDER BY f.id", userID)
}

// ListBySaleTx lists the fringers sold in a sale.
func (r *FringerRepo) ListBySaleTx(ctx context.Context, q querier, saleID uint64) ([]model.Fringer, error) {
	return r.list(ctx, q, fringerSelect+" WHERE f.sale_id = ? ORDER BY f.fringer_type_id, f.id", saleID)
}

func (r *FringerRepo) list(ctx context.Context, q querier, query string, args ...any) ([]model.Fringer, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Fringer
	for rows.Next() {
		f, err := scanFringer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// CountOwnedTx counts every eFringer the user holds, in the basket or sold.
func (r *FringerRepo) CountOwnedTx(ctx context.Context, q querier, userID uint64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM fringers WHERE user_id = ?", userID).Scan(&n)
	return n, err
}

// DeleteFromBasketTx removes a fringer from a basket.
func (r *FringerRepo) DeleteFromBasketTx(ctx context.Context, tx *sql.Tx, userID, fringerID uint64) error {
	return affected(tx.ExecContext(ctx, "DELETE FROM fringers WHERE id = ? AND basket_user_id = ?", fringerID, userID))
}

// DeletePaperFromSaleTx removes a sale's paper fringers of one type so the
// count can be set afresh.
func (r *FringerRepo) DeletePaperFromSaleTx(ctx context.Context, tx *sql.Tx, saleID, fringerTypeID uint64) error {
	_, err := tx.ExecContext(ctx,
		"DELETE FROM fringers WHERE sale_id = ? AND fringer_type_id = ? AND user_id IS NULL", saleID, fringerTypeID)
	return err
}
