package handler

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/iliyamo/festival-boxoffice/internal/ledger"
	"github.com/iliyamo/festival-boxoffice/internal/model"
	"github.com/iliyamo/festival-boxoffice/internal/repository"
)

// ticketLine asks for Quantity tickets of one type.
type ticketLine struct {
	TicketTypeID uint64 `json:"ticket_type_id" validate:"required"`
	Quantity     int    `json:"quantity" validate:"gte=0,lte=100"`
}

type addTicketsReq struct {
	PerformanceID uint64       `json:"performance_id" validate:"required"`
	Tickets       []ticketLine `json:"tickets" validate:"required,min=1,dive"`
}

type fringerTicketsReq struct {
	PerformanceID uint64   `json:"performance_id" validate:"required"`
	FringerIDs    []uint64 `json:"fringer_ids" validate:"required,min=1,max=20,dive,required"`
}

// ticketOwner says where newly issued tickets go: a sale or a basket.
type ticketOwner struct {
	SaleID       *uint64
	BasketUserID *uint64
	UserID       *uint64
}

func saleOwner(s model.Sale) ticketOwner {
	id := s.ID
	o := ticketOwner{SaleID: &id}
	if s.IsOnline() {
		uid := s.UserID
		o.UserID = &uid
	}
	return o
}

// checkSalePerformance keeps a venue sale to the performance it was
// started for.
func checkSalePerformance(s model.Sale, p model.Performance) error {
	if s.VenueID == nil {
		return nil
	}
	if p.VenueID == nil || *p.VenueID != *s.VenueID {
		return ledger.ErrPerformanceMismatch
	}
	if s.PerformanceID == nil || *s.PerformanceID != p.ID {
		return ledger.ErrOtherPerformance
	}
	return nil
}

// venueOpenTx requires a venue sale's performance to be open and not yet
// closed.  The performance row is locked so a close checkpoint cannot slip
// in before the sale commits.  Other sales pass.
func (s *Store) venueOpenTx(ctx context.Context, tx *sql.Tx, sale model.Sale) error {
	if sale.VenueID == nil {
		return nil
	}
	if sale.PerformanceID == nil {
		return ledger.ErrOtherPerformance
	}
	if err := s.Program.LockPerformanceTx(ctx, tx, *sale.PerformanceID); err != nil {
		return err
	}
	open, closed, err := s.Checkpoints.ForPerformance(ctx, tx, *sale.PerformanceID)
	if err != nil {
		return err
	}
	return ledger.CanClose(open, closed)
}

// requireOpenSaleTx is the precondition of every item change on a box
// office or venue sale.
func (s *Store) requireOpenSaleTx(ctx context.Context, tx *sql.Tx, sale model.Sale) error {
	if err := ledger.RequireInProgress(sale); err != nil {
		return err
	}
	return s.venueOpenTx(ctx, tx, sale)
}

// issueTicketsTx creates paid tickets of the requested types for one
// performance.  The performance row stays locked until tx ends, so two
// requests can never both take the last seats.
func (s *Store) issueTicketsTx(ctx context.Context, tx *sql.Tx, festivalID uint64, perf model.Performance,
	ch ledger.Channel, lines []ticketLine, owner ticketOwner) ([]model.Ticket, error) {
	types := make([]model.TicketType, len(lines))
	total := 0
	for i, l := range lines {
		tt, err := s.Program.GetTicketTypeTx(ctx, tx, festivalID, l.TicketTypeID)
		if err != nil {
			return nil, err
		}
		if err := ledger.CheckChannel(tt, ch); err != nil {
			return nil, err
		}
		types[i] = tt
		total += l.Quantity
	}
	if total == 0 {
		return nil, nil
	}
	avail, err := s.Program.LockAvailabilityTx(ctx, tx, perf.ID)
	if err != nil {
		return nil, err
	}
	if err := ledger.Reserve(avail, total); err != nil {
		return nil, err
	}
	out := make([]model.Ticket, 0, total)
	for i, l := range lines {
		for n := 0; n < l.Quantity; n++ {
			t := model.Ticket{
				PerformanceID: perf.ID,
				TicketTypeID:  types[i].ID,
				UserID:        owner.UserID,
				Cost:          ledger.TicketCost(types[i], false),
				BasketUserID:  owner.BasketUserID,
				SaleID:        owner.SaleID,
			}
			if err := s.Tickets.CreateTx(ctx, tx, &t); err != nil {
				return nil, err
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// redeemFringersTx issues one free ticket per fringer.  Each fringer must
// be paid for, have credit left and not already hold a ticket for the
// performance.  owned, when non-zero, restricts redemption to that user's
// eFringers.
func (s *Store) redeemFringersTx(ctx context.Context, tx *sql.Tx, festivalID uint64, perf model.Performance,
	fringerIDs []uint64, saleID uint64, owned uint64) ([]model.Ticket, error) {
	avail, err := s.Program.LockAvailabilityTx(ctx, tx, perf.ID)
	if err != nil {
		return nil, err
	}
	if err := ledger.Reserve(avail, len(fringerIDs)); err != nil {
		return nil, err
	}
	out := make([]model.Ticket, 0, len(fringerIDs))
	for _, id := range fringerIDs {
		f, err := s.Fringers.GetForUpdateTx(ctx, tx, festivalID, id)
		if err != nil {
			return nil, err
		}
		if owned != 0 && (f.UserID == nil || *f.UserID != owned) {
			return nil, repository.ErrNotFound
		}
		used, err := s.Tickets.FringerUsedForPerformanceTx(ctx, tx, f.ID, perf.ID)
		if err != nil {
			return nil, err
		}
		if err := ledger.CheckFringer(f, used); err != nil {
			return nil, err
		}
		ft, err := s.Program.GetFringerTypeTx(ctx, tx, festivalID, f.FringerTypeID)
		if err != nil {
			return nil, err
		}
		tt, err := s.Program.GetTicketTypeTx(ctx, tx, festivalID, ft.TicketTypeID)
		if err != nil {
			return nil, err
		}
		fid, sid := f.ID, saleID
		t := model.Ticket{
			PerformanceID: perf.ID,
			TicketTypeID:  tt.ID,
			UserID:        f.UserID,
			Cost:          ledger.TicketCost(tt, true),
			FringerID:     &fid,
			SaleID:        &sid,
		}
		if err := s.Tickets.CreateTx(ctx, tx, &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// reserveBasketTx re-checks availability for every performance in a
// basket, locking performances in id order.
func (s *Store) reserveBasketTx(ctx context.Context, tx *sql.Tx, tickets []model.Ticket) error {
	counts := map[uint64]int{}
	for _, t := range tickets {
		counts[t.PerformanceID]++
	}
	ids := make([]uint64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		avail, err := s.Program.LockAvailabilityTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := ledger.Reserve(avail, counts[id]); err != nil {
			return err
		}
	}
	return nil
}

// ticketNotFound turns a missing ticket into the user-facing message.
func ticketNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ledger.ErrTicketNotFound
	}
	return err
}
