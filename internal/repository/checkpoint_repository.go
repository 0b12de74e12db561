package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// CheckpointRepo stores manual counts.  Only notes can be changed once a
// checkpoint exists.
type CheckpointRepo struct {
	db *sql.DB
}

// NewCheckpointRepo returns a new CheckpointRepo bound to the given database.
func NewCheckpointRepo(db *sql.DB) *CheckpointRepo { return &CheckpointRepo{db: db} }

// DB exposes the underlying sql.DB for transactions spanning repositories.
func (r *CheckpointRepo) DB() *sql.DB { return r.db }

const checkpointSelect = `SELECT c.id, c.user_id, c.boxoffice_id, c.venue_id, c.open_performance_id,
	c.close_performance_id, c.cash, c.buttons, c.fringers, COALESCE(c.notes, ''), c.created_at FROM checkpoints c`

func scanCheckpoint(row scanner) (model.Checkpoint, error) {
	var cp model.Checkpoint
	var user, boxOffice, venue, open, close sql.NullInt64
	err := row.Scan(&cp.ID, &user, &boxOffice, &venue, &open, &close,
		&cp.Cash, &cp.Buttons, &cp.Fringers, &cp.Notes, &cp.CreatedAt)
	cp.UserID = u64Ptr(user)
	cp.BoxOfficeID = u64Ptr(boxOffice)
	cp.VenueID = u64Ptr(venue)
	cp.OpenPerformanceID = u64Ptr(open)
	cp.ClosePerformanceID = u64Ptr(close)
	cp.CreatedAt = cp.CreatedAt.UTC()
	return cp, err
}

// CreateTx inserts a checkpoint.  A second open or close checkpoint for the
// same performance hits the unique key and returns ErrConflict.
func (r *CheckpointRepo) CreateTx(ctx context.Context, tx *sql.Tx, cp *model.Checkpoint) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO checkpoints (user_id, boxoffice_id, venue_id, open_performance_id, close_performance_id,
		 cash, buttons, fringers, notes) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.UserID, cp.BoxOfficeID, cp.VenueID, cp.OpenPerformanceID, cp.ClosePerformanceID,
		cp.Cash, cp.Buttons, cp.Fringers, cp.Notes)
	if err != nil {
		if duplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := scanCheckpoint(tx.QueryRowContext(ctx, checkpointSelect+" WHERE c.id = ?", id))
	if err != nil {
		return err
	}
	*cp = created
	return nil
}

// Get loads a checkpoint belonging to the festival, through either its box
// office or its venue.
func (r *CheckpointRepo) Get(ctx context.Context, festivalID, id uint64) (model.Checkpoint, error) {
	cp, err := scanCheckpoint(r.db.QueryRowContext(ctx, checkpointSelect+`
		LEFT JOIN box_offices b ON b.id = c.boxoffice_id
		LEFT JOIN venues v ON v.id = c.venue_id
		WHERE c.id = ? AND (b.festival_id = ? OR v.festival_id = ?)`, id, festivalID, festivalID))
	return cp, notFound(err)
}

// UpdateNotes changes a checkpoint's notes.
func (r *CheckpointRepo) UpdateNotes(ctx context.Context, id uint64, notes string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE checkpoints SET notes = ? WHERE id = ?", notes, id)
	return err
}

// ForPerformance returns the open and close checkpoints of a performance;
// either may be nil.
func (r *CheckpointRepo) ForPerformance(ctx context.Context, q querier, performanceID uint64) (open, close *model.Checkpoint, err error) {
	rows, err := q.QueryContext(ctx, checkpointSelect+
		" WHERE c.open_performance_id = ? OR c.close_performance_id = ?", performanceID, performanceID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, nil, err
		}
		if cp.OpenPerformanceID != nil && *cp.OpenPerformanceID == performanceID {
			open = &cp
		} else {
			close = &cp
		}
	}
	return open, close, rows.Err()
}

// ListBoxOfficeDay lists a box office's checkpoints on one day in order.
func (r *CheckpointRepo) ListBoxOfficeDay(ctx context.Context, boxOfficeID uint64, day time.Time) ([]model.Checkpoint, error) {
	from := day.UTC().Truncate(24 * time.Hour)
	rows, err := r.db.QueryContext(ctx, checkpointSelect+
		" WHERE c.boxoffice_id = ? AND c.created_at >= ? AND c.created_at < ? ORDER BY c.created_at",
		boxOfficeID, from, from.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}
