package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// FestivalRepo reads festivals and manages their box offices and venues.
type FestivalRepo struct {
	db *sql.DB
}

// NewFestivalRepo returns a new FestivalRepo bound to the given database.
func NewFestivalRepo(db *sql.DB) *FestivalRepo { return &FestivalRepo{db: db} }

// DB exposes the handle so handlers can open transactions.
func (r *FestivalRepo) DB() *sql.DB { return r.db }

const festivalCols = "id, slug, name, button_price, online_sales_open, online_sales_close"

func scanFestival(row scanner) (model.Festival, error) {
	var f model.Festival
	var open, close sql.NullTime
	if err := row.Scan(&f.ID, &f.Slug, &f.Name, &f.ButtonPrice, &open, &close); err != nil {
		return f, notFound(err)
	}
	f.OnlineSalesOpen, f.OnlineSalesClose = timePtr(open), timePtr(close)
	return f, nil
}

// GetBySlug looks a festival up by its public slug.
func (r *FestivalRepo) GetBySlug(ctx context.Context, slug string) (model.Festival, error) {
	return scanFestival(r.db.QueryRowContext(ctx, "SELECT "+festivalCols+" FROM festivals WHERE slug = ?", slug))
}

// GetByID loads a festival.
func (r *FestivalRepo) GetByID(ctx context.Context, id uint64) (model.Festival, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

// GetByIDTx loads a festival inside a transaction.
func (r *FestivalRepo) GetByIDTx(ctx context.Context, q querier, id uint64) (model.Festival, error) {
	return scanFestival(q.QueryRowContext(ctx, "SELECT "+festivalCols+" FROM festivals WHERE id = ?", id))
}

// CreateBoxOffice inserts a box office.
func (r *FestivalRepo) CreateBoxOffice(ctx context.Context, b *model.BoxOffice) error {
	res, err := r.db.ExecContext(ctx, "INSERT INTO box_offices (festival_id, name) VALUES (?, ?)", b.FestivalID, b.Name)
	if err != nil {
		if duplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	b.ID = uint64(id)
	return err
}

// GetBoxOffice loads a box office of the festival.
func (r *FestivalRepo) GetBoxOffice(ctx context.Context, festivalID, id uint64) (model.BoxOffice, error) {
	var b model.BoxOffice
	err := r.db.QueryRowContext(ctx,
		"SELECT id, festival_id, name FROM box_offices WHERE id = ? AND festival_id = ?", id, festivalID).
		Scan(&b.ID, &b.FestivalID, &b.Name)
	return b, notFound(err)
}

// ListBoxOffices lists the festival's box offices by name.
func (r *FestivalRepo) ListBoxOffices(ctx context.Context, festivalID uint64) ([]model.BoxOffice, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, festival_id, name FROM box_offices WHERE festival_id = ? ORDER BY name", festivalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BoxOffice
	for rows.Next() {
		var b model.BoxOffice
		if err := rows.Scan(&b.ID, &b.FestivalID, &b.Name); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateVenue inserts a venue.
func (r *FestivalRepo) CreateVenue(ctx context.Context, v *model.Venue) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO venues (festival_id, name, capacity, is_ticketed) VALUES (?, ?, ?, ?)",
		v.FestivalID, v.Name, v.Capacity, v.IsTicketed)
	if err != nil {
		if duplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	v.ID = uint64(id)
	return err
}

// GetVenue loads a venue of the festival.
func (r *FestivalRepo) GetVenue(ctx context.Context, festivalID, id uint64) (model.Venue, error) {
	var v model.Venue
	var capacity sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		"SELECT id, festival_id, name, capacity, is_ticketed FROM venues WHERE id = ? AND festival_id = ?", id, festivalID).
		Scan(&v.ID, &v.FestivalID, &v.Name, &capacity, &v.IsTicketed)
	if err != nil {
		return v, notFound(err)
	}
	if capacity.Valid {
		c := int(capacity.Int64)
		v.Capacity = &c
	}
	return v, nil
}
