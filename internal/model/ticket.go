package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Names of ticket types with special handling.
const (
    TicketTypeVolunteer = "Volunteer"
)

// TicketType prices an admission and says which channels may sell it.
type TicketType struct {
    ID          uint64          `json:"id"`           // ticket_types.id
    FestivalID  uint64          `json:"festival_id"`  // ticket_types.festival_id
    Name        string          `json:"name"`         // ticket_types.name
    SeqNo       int             `json:"seqno"`        // ticket_types.seqno
    Price       decimal.Decimal `json:"price"`        // ticket_types.price
    IsOnline    bool            `json:"is_online"`    // ticket_types.is_online
    IsBoxOffice bool            `json:"is_boxoffice"` // ticket_types.is_boxoffice
    IsVenue     bool            `json:"is_venue"`     // ticket_types.is_venue
    Rules       string          `json:"rules"`        // ticket_types.rules
    Payment     decimal.Decimal `json:"payment"`      // ticket_types.payment (paid to the company)
}

// FringerType describes a multi-show voucher: how many shows it covers and
// which ticket type redemptions are issued as.
type FringerType struct {
    ID           uint64          `json:"id"`             // fringer_types.id
    FestivalID   uint64          `json:"festival_id"`    // fringer_types.festival_id
    Name         string          `json:"name"`           // fringer_types.name
    Shows        int             `json:"shows"`          // fringer_types.shows
    Price        decimal.Decimal `json:"price"`          // fringer_types.price
    IsOnline     bool            `json:"is_online"`      // fringer_types.is_online
    Rules        string          `json:"rules"`          // fringer_types.rules
    TicketTypeID uint64          `json:"ticket_type_id"` // fringer_types.ticket_type_id
}

// Fringer is one voucher.  eFringers belong to a user; paper fringers sold
// at a box office or venue have no user.  Like tickets, a fringer sits in a
// basket or a sale, never both.
//
// Used and Shows are filled by queries that join usage counts.
type Fringer struct {
    ID            uint64          `json:"id"`              // fringers.id
    UUID          string          `json:"uuid"`            // fringers.uuid
    UserID        *uint64         `json:"user_id"`         // fringers.user_id (nullable)
    FringerTypeID uint64          `json:"fringer_type_id"` // fringers.fringer_type_id
    TypeName      string          `json:"type_name"`       // joined fringer_types.name
    Name          string          `json:"name"`            // fringers.name
    Cost          decimal.Decimal `json:"cost"`            // fringers.cost
    BasketUserID  *uint64         `json:"-"`               // fringers.basket_user_id (nullable)
    SaleID        *uint64         `json:"-"`               // fringers.sale_id (nullable)
    SaleCompleted bool            `json:"-"`               // joined: the owning sale is completed
    Shows         int             `json:"shows"`           // joined fringer_types.shows
    Used          int             `json:"used"`            // non-refunded tickets + PAYW uses
    CreatedAt     time.Time       `json:"created_at"`      // fringers.created_at
}

// IsEFringer reports whether the fringer is held electronically by a user.
func (f Fringer) IsEFringer() bool { return f.UserID != nil }

// Ticket is one admission unit.  Cost is captured when the row is created.
type Ticket struct {
    ID             uint64          `json:"id"`             // tickets.id
    UUID           string          `json:"uuid"`           // tickets.uuid
    PerformanceID  uint64          `json:"performance_id"` // tickets.performance_id
    ShowName       string          `json:"show_name"`      // joined shows.name
    StartsAt       time.Time       `json:"starts_at"`      // joined performances.starts_at
    TicketTypeID   uint64          `json:"ticket_type_id"` // tickets.ticket_type_id
    TypeName       string          `json:"type_name"`      // joined ticket_types.name
    UserID         *uint64         `json:"user_id"`        // tickets.user_id (nullable)
    Cost           decimal.Decimal `json:"cost"`           // tickets.cost
    BasketUserID   *uint64         `json:"-"`              // tickets.basket_user_id (nullable)
    FringerID      *uint64         `json:"fringer_id"`     // tickets.fringer_id (nullable)
    FringerUserID  *uint64         `json:"-"`              // joined fringers.user_id
    SaleID         *uint64         `json:"-"`              // tickets.sale_id (nullable)
    SaleCompleted  bool            `json:"-"`              // joined: owning sale is completed
    SaleBoxOffice  *uint64         `json:"-"`              // joined sales.boxoffice_id
    SaleVenue      *uint64         `json:"-"`              // joined sales.venue_id
    RefundID       *uint64         `json:"refund_id"`      // tickets.refund_id (nullable)
    TokenIssued    bool            `json:"token_issued"`   // tickets.token_issued
    Customer       string          `json:"customer,omitempty"`
    CreatedAt      time.Time       `json:"created_at"`     // tickets.created_at
}

// IsConfirmed is true once the ticket has left the basket and not been refunded.
func (t Ticket) IsConfirmed() bool { return t.BasketUserID == nil && t.RefundID == nil }

// IsCancelled is true once a refund owns the ticket.
func (t Ticket) IsCancelled() bool { return t.RefundID != nil }

// IsEFringer reports whether the ticket was paid with an eFringer.
func (t Ticket) IsEFringer() bool { return t.FringerID != nil && t.FringerUserID != nil }

// PayAsYouWill records a donation-priced admission to a non-ticketed show,
// optionally redeemed against a fringer.
type PayAsYouWill struct {
    ID        uint64          `json:"id"`         // payw.id
    SaleID    uint64          `json:"sale_id"`    // payw.sale_id
    ShowID    uint64          `json:"show_id"`    // payw.show_id
    ShowName  string          `json:"show_name"`  // joined shows.name
    FringerID *uint64         `json:"fringer_id"` // payw.fringer_id (nullable)
    Amount    decimal.Decimal `json:"amount"`     // payw.amount
}
