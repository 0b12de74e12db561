package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// PAYWRepo manages pay-as-you-will entries.  They only ever belong to a
// sale and are removed with it.
type PAYWRepo struct {
	db *sql.DB
}

// NewPAYWRepo returns a new PAYWRepo bound to the given database.
func NewPAYWRepo(db *sql.DB) *PAYWRepo { return &PAYWRepo{db: db} }

// CreateTx inserts an entry.
func (r *PAYWRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.PayAsYouWill) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO payw (sale_id, show_id, fringer_id, amount) VALUES (?, ?, ?, ?)",
		p.SaleID, p.ShowID, p.FringerID, p.Amount)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	p.ID = uint64(id)
	return err
}

// DeleteTx removes an entry from a sale.
func (r *PAYWRepo) DeleteTx(ctx context.Context, tx *sql.Tx, saleID, id uint64) error {
	return affected(tx.ExecContext(ctx, "DELETE FROM payw WHERE id = ? AND sale_id = ?", id, saleID))
}

// ListBySaleTx lists a sale's entries.
func (r *PAYWRepo) ListBySaleTx(ctx context.Context, q querier, saleID uint64) ([]model.PayAsYouWill, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT w.id, w.sale_id, w.show_id, s.name, w.fringer_id, w.amount
		 FROM payw w JOIN shows s ON s.id = w.show_id WHERE w.sale_id = ? ORDER BY w.id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PayAsYouWill
	for rows.Next() {
		var p model.PayAsYouWill
		var fringer sql.NullInt64
		if err := rows.Scan(&p.ID, &p.SaleID, &p.ShowID, &p.ShowName, &fringer, &p.Amount); err != nil {
			return nil, err
		}
		p.FringerID = u64Ptr(fringer)
		out = append(out, p)
	}
	return out, rows.Err()
}
