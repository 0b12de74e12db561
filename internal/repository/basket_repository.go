package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// BasketRepo reads and updates the per-user online basket.  Every user gets
// a basket row when registering.
type BasketRepo struct {
	db *sql.DB
}

// NewBasketRepo returns a new BasketRepo bound to the given database.
func NewBasketRepo(db *sql.DB) *BasketRepo { return &BasketRepo{db: db} }

// DB exposes the underlying sql.DB for transactions spanning repositories.
func (r *BasketRepo) DB() *sql.DB { return r.db }

// Get loads a basket.
func (r *BasketRepo) Get(ctx context.Context, q querier, userID uint64) (model.Basket, error) {
	b := model.Basket{UserID: userID}
	err := q.QueryRowContext(ctx, "SELECT buttons FROM baskets WHERE user_id = ?", userID).Scan(&b.Buttons)
	return b, notFound(err)
}

// ContentsTx aggregates the tickets and fringers in a basket.
func (r *BasketRepo) ContentsTx(ctx context.Context, q querier, userID uint64) (model.SaleContents, error) {
	return contents(ctx, q, "basket_user_id", userID)
}

// SetButtonsTx replaces the basket's button count.
func (r *BasketRepo) SetButtonsTx(ctx context.Context, tx *sql.Tx, userID uint64, buttons int) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO baskets (user_id, buttons) VALUES (?, ?) ON DUPLICATE KEY UPDATE buttons = VALUES(buttons)`,
		userID, buttons)
	return err
}
