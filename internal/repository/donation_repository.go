package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// DonationRepo records donations confirmed by the payment provider.
type DonationRepo struct {
	db *sql.DB
}

// NewDonationRepo returns a new DonationRepo bound to the given database.
func NewDonationRepo(db *sql.DB) *DonationRepo { return &DonationRepo{db: db} }

// Create inserts a donation.  The transaction id is unique, so a repeated
// confirmation returns ErrConflict and records nothing.
func (r *DonationRepo) Create(ctx context.Context, d *model.Donation) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO donations (festival_id, email, amount, transaction_id) VALUES (?, ?, ?, ?)",
		d.FestivalID, d.Email, d.Amount, d.TransactionID)
	if err != nil {
		if duplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	d.ID = uint64(id)
	return err
}
