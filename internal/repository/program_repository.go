// Package repository: programme data.  Shows belong to a venue; performances
// are the dated showings tickets are issued against.  Availability is
// counted here straight from the tickets table on every call.
package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/festival-boxoffice/internal/ledger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
)

// ProgramRepo manages shows, performances and ticket/fringer types.
type ProgramRepo struct {
	db *sql.DB
}

// NewProgramRepo returns a new ProgramRepo bound to the given database.
func NewProgramRepo(db *sql.DB) *ProgramRepo { return &ProgramRepo{db: db} }

// DB exposes the underlying sql.DB for transactions spanning repositories.
func (r *ProgramRepo) DB() *sql.DB { return r.db }

// ShowSearchQuery filters the public programme listing.
type ShowSearchQuery struct {
	FestivalID uint64
	Name       string
	Venue      string
	Page       int
	PageSize   int
}

// CreateShow inserts a show.
func (r *ProgramRepo) CreateShow(ctx context.Context, s *model.Show) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO shows (festival_id, venue_id, name) VALUES (?, ?, ?)", s.FestivalID, s.VenueID, s.Name)
	if err != nil {
		if duplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	s.ID = uint64(id)
	return err
}

const showSelect = `SELECT s.id, s.festival_id, s.venue_id, COALESCE(v.name, ''), s.name, s.is_cancelled
	FROM shows s LEFT JOIN venues v ON v.id = s.venue_id`

func scanShow(row scanner) (model.Show, error) {
	var s model.Show
	var venue sql.NullInt64
	err := row.Scan(&s.ID, &s.FestivalID, &venue, &s.VenueName, &s.Name, &s.IsCancelled)
	s.VenueID = u64Ptr(venue)
	return s, err
}

// GetShow loads a show of the festival.
func (r *ProgramRepo) GetShow(ctx context.Context, festivalID, id uint64) (model.Show, error) {
	return r.GetShowTx(ctx, r.db, festivalID, id)
}

// GetShowTx loads a show inside a transaction.
func (r *ProgramRepo) GetShowTx(ctx context.Context, q querier, festivalID, id uint64) (model.Show, error) {
	s, err := scanShow(q.QueryRowContext(ctx, showSelect+" WHERE s.id = ? AND s.festival_id = ?", id, festivalID))
	return s, notFound(err)
}

// GetShowByID loads a show of any festival.  Public programme routes
// carry only the show id.
func (r *ProgramRepo) GetShowByID(ctx context.Context, id uint64) (model.Show, error) {
	s, err := scanShow(r.db.QueryRowContext(ctx, showSelect+" WHERE s.id = ?", id))
	return s, notFound(err)
}

// SearchShows lists the programme with optional name and venue filters.
func (r *ProgramRepo) SearchShows(ctx context.Context, q ShowSearchQuery) ([]model.Show, int64, error) {
	where := []string{"s.festival_id = ?", "s.is_cancelled = FALSE"}
	args := []any{q.FestivalID}
	if q.Name != "" {
		where = append(where, "LOWER(s.name) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Name)+"%")
	}
	if q.Venue != "" {
		where = append(where, "LOWER(v.name) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Venue)+"%")
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countSQL := `SELECT COUNT(*) FROM shows s LEFT JOIN venues v ON v.id = s.venue_id WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if q.PageSize <= 0 {
		q.PageSize = 50
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	argsData := append(append([]any{}, args...), q.PageSize, (q.Page-1)*q.PageSize)
	rows, err := r.db.QueryContext(ctx, showSelect+" WHERE "+cond+" ORDER BY s.name LIMIT ? OFFSET ?", argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]model.Show, 0, q.PageSize)
	for rows.Next() {
		s, err := scanShow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// CreatePerformance inserts a performance of a show.
func (r *ProgramRepo) CreatePerformance(ctx context.Context, p *model.Performance) error {
	p.UUID = newUUID()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO performances (uuid, show_id, starts_at, notes) VALUES (?, ?, ?, ?)",
		p.UUID, p.ShowID, p.StartsAt.UTC(), p.Notes)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	p.ID = uint64(id)
	return err
}

const performanceSelect = `SELECT p.id, p.uuid, p.show_id, s.name, s.venue_id, p.starts_at, COALESCE(p.notes, '')
	FROM performances p JOIN shows s ON s.id = p.show_id`

func scanPerformance(row scanner) (model.Performance, error) {
	var p model.Performance
	var venue sql.NullInt64
	err := row.Scan(&p.ID, &p.UUID, &p.ShowID, &p.ShowName, &venue, &p.StartsAt, &p.Notes)
	p.VenueID = u64Ptr(venue)
	return p, err
}

// GetPerformance loads a performance of the festival.
func (r *ProgramRepo) GetPerformance(ctx context.Context, festivalID, id uint64) (model.Performance, error) {
	return r.GetPerformanceTx(ctx, r.db, festivalID, id)
}

// GetPerformanceTx loads a performance inside a transaction.
func (r *ProgramRepo) GetPerformanceTx(ctx context.Context, q querier, festivalID, id uint64) (model.Performance, error) {
	p, err := scanPerformance(q.QueryRowContext(ctx, performanceSelect+" WHERE p.id = ? AND s.festival_id = ?", id, festivalID))
	return p, notFound(err)
}

// ListPerformances lists a show's performances in date order.
func (r *ProgramRepo) ListPerformances(ctx context.Context, festivalID, showID uint64) ([]model.Performance, error) {
	return r.listPerformances(ctx, performanceSelect+" WHERE s.id = ? AND s.festival_id = ? ORDER BY p.starts_at", showID, festivalID)
}

// ListVenuePerformances lists a venue's performances on one day.
func (r *ProgramRepo) ListVenuePerformances(ctx context.Context, venueID uint64, day time.Time) ([]model.Performance, error) {
	from := day.UTC().Truncate(24 * time.Hour)
	return r.listPerformances(ctx,
		performanceSelect+" WHERE s.venue_id = ? AND p.starts_at >= ? AND p.starts_at < ? ORDER BY p.starts_at",
		venueID, from, from.Add(24*time.Hour))
}

func (r *ProgramRepo) listPerformances(ctx context.Context, query string, args ...any) ([]model.Performance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Performance
	for rows.Next() {
		p, err := scanPerformance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const availabilitySQL = `SELECT v.capacity,
	(SELECT COUNT(*) FROM tickets t WHERE t.performance_id = p.id AND t.basket_user_id IS NULL),
	(SELECT COUNT(*) FROM tickets t WHERE t.performance_id = p.id AND t.refund_id IS NOT NULL)
	FROM performances p
	JOIN shows s ON s.id = p.show_id
	LEFT JOIN venues v ON v.id = s.venue_id
	WHERE p.id = ?`

// Availability counts tickets for a performance without locking.  Used by
// the public endpoint; ticket-issuing paths call LockAvailabilityTx.
func (r *ProgramRepo) Availability(ctx context.Context, performanceID uint64) (model.Availability, error) {
	return availability(ctx, r.db, performanceID)
}

// LockAvailabilityTx locks the performance row for the rest of the
// transaction and then counts, so concurrent sales of the same
// performance check one after the other.
func (r *ProgramRepo) LockAvailabilityTx(ctx context.Context, tx *sql.Tx, performanceID uint64) (model.Availability, error) {
	if err := r.LockPerformanceTx(ctx, tx, performanceID); err != nil {
		return model.Availability{}, err
	}
	return availability(ctx, tx, performanceID)
}

// LockPerformanceTx takes the row lock that serialises ticket issue and
// checkpoints of one performance.
func (r *ProgramRepo) LockPerformanceTx(ctx context.Context, tx *sql.Tx, performanceID uint64) error {
	var id uint64
	err := tx.QueryRowContext(ctx, "SELECT id FROM performances WHERE id = ? FOR UPDATE", performanceID).Scan(&id)
	return notFound(err)
}

func availability(ctx context.Context, q querier, performanceID uint64) (model.Availability, error) {
	var capacity sql.NullInt64
	var sold, refunded int
	if err := q.QueryRowContext(ctx, availabilitySQL, performanceID).Scan(&capacity, &sold, &refunded); err != nil {
		return model.Availability{}, notFound(err)
	}
	var cp *int
	if capacity.Valid {
		c := int(capacity.Int64)
		cp = &c
	}
	return ledger.Snapshot(performanceID, cp, sold, refunded), nil
}

// CreateTicketType inserts a ticket type.
func (r *ProgramRepo) CreateTicketType(ctx context.Context, t *model.TicketType) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ticket_types (festival_id, name, seqno, price, is_online, is_boxoffice, is_venue, rules, payment)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.FestivalID, t.Name, t.SeqNo, t.Price, t.IsOnline, t.IsBoxOffice, t.IsVenue, t.Rules, t.Payment)
	if err != nil {
		if duplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	t.ID = uint64(id)
	return err
}

const ticketTypeSelect = `SELECT id, festival_id, name, seqno, price, is_online, is_boxoffice, is_venue, COALESCE(rules, ''), payment FROM ticket_types`

func scanTicketType(row scanner) (model.TicketType, error) {
	var t model.TicketType
	err := row.Scan(&t.ID, &t.FestivalID, &t.Name, &t.SeqNo, &t.Price, &t.IsOnline, &t.IsBoxOffice, &t.IsVenue, &t.Rules, &t.Payment)
	return t, err
}

// GetTicketTypeTx loads a ticket type of the festival.
func (r *ProgramRepo) GetTicketTypeTx(ctx context.Context, q querier, festivalID, id uint64) (model.TicketType, error) {
	t, err := scanTicketType(q.QueryRowContext(ctx, ticketTypeSelect+" WHERE id = ? AND festival_id = ?", id, festivalID))
	return t, notFound(err)
}

// GetTicketTypeByNameTx loads a ticket type by name, e.g. "Volunteer".
func (r *ProgramRepo) GetTicketTypeByNameTx(ctx context.Context, q querier, festivalID uint64, name string) (model.TicketType, error) {
	t, err := scanTicketType(q.QueryRowContext(ctx, ticketTypeSelect+" WHERE festival_id = ? AND name = ?", festivalID, name))
	return t, notFound(err)
}

// ListTicketTypes lists the festival's ticket types in display order.
// channel may be "online", "boxoffice", "venue" or empty for all.
func (r *ProgramRepo) ListTicketTypes(ctx context.Context, festivalID uint64, channel string) ([]model.TicketType, error) {
	query := ticketTypeSelect + " WHERE festival_id = ?"
	switch channel {
	case "online":
		query += " AND is_online = TRUE"
	case "boxoffice":
		query += " AND is_boxoffice = TRUE"
	case "venue":
		query += " AND is_venue = TRUE"
	}
	rows, err := r.db.QueryContext(ctx, query+" ORDER BY seqno, name", festivalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TicketType
	for rows.Next() {
		t, err := scanTicketType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateFringerType inserts a fringer type.
func (r *ProgramRepo) CreateFringerType(ctx context.Context, f *model.FringerType) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO fringer_types (festival_id, name, shows, price, is_online, rules, ticket_type_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.FestivalID, f.Name, f.Shows, f.Price, f.IsOnline, f.Rules, f.TicketTypeID)
	if err != nil {
		if duplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	f.ID = uint64(id)
	return err
}

const fringerTypeSelect = `SELECT id, festival_id, name, shows, price, is_online, COALESCE(rules, ''), ticket_type_id FROM fringer_types`

func scanFringerType(row scanner) (model.FringerType, error) {
	var f model.FringerType
	err := row.Scan(&f.ID, &f.FestivalID, &f.Name, &f.Shows, &f.Price, &f.IsOnline, &f.Rules, &f.TicketTypeID)
	return f, err
}

// GetFringerTypeTx loads a fringer type of the festival.
func (r *ProgramRepo) GetFringerTypeTx(ctx context.Context, q querier, festivalID, id uint64) (model.FringerType, error) {
	f, err := scanFringerType(q.QueryRowContext(ctx, fringerTypeSelect+" WHERE id = ? AND festival_id = ?", id, festivalID))
	return f, notFound(err)
}

// ListFringerTypes lists fringer types; onlineOnly restricts to the web shop.
func (r *ProgramRepo) ListFringerTypes(ctx context.Context, festivalID uint64, onlineOnly bool) ([]model.FringerType, error) {
	query := fringerTypeSelect + " WHERE festival_id = ?"
	if onlineOnly {
		query += " AND is_online = TRUE"
	}
	rows, err := r.db.QueryContext(ctx, query+" ORDER BY name", festivalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.FringerType
	for rows.Next() {
		f, err := scanFringerType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
