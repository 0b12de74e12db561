package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// TransactionType records how a sale was paid.  The numeric values are
// stored in sales.transaction_type.
type TransactionType uint8

const (
    TransactionCash   TransactionType = 1
    TransactionStripe TransactionType = 2
    TransactionSquare TransactionType = 3
)

// String returns the label used in reports.
func (t TransactionType) String() string {
    switch t {
    case TransactionCash:
        return "Cash"
    case TransactionStripe:
        return "Stripe"
    case TransactionSquare:
        return "Square"
    }
    return "Unknown"
}

// Sale is one shopping transaction at a box office, a venue or online.
// Online sales have neither BoxOfficeID nor VenueID.  A venue sale also
// names the performance whose open checkpoint it belongs to.
//
// Fields:
//  Customer        – free text, usually an e-mail address.
//  Buttons         – number of festival buttons sold.
//  Donation        – voluntary donation added at checkout.
//  Amount          – total snapshotted when payment starts or completes.
//  Completed       – set once paid (terminal).
//  Cancelled       – set when abandoned with items attached (terminal).
//  TransactionType – nil while in progress; set when payment is pending.
type Sale struct {
    ID              uint64           `json:"id"`               // sales.id
    UUID            string           `json:"uuid"`             // sales.uuid
    FestivalID      uint64           `json:"festival_id"`      // sales.festival_id
    BoxOfficeID     *uint64          `json:"boxoffice_id"`     // sales.boxoffice_id (nullable)
    VenueID         *uint64          `json:"venue_id"`         // sales.venue_id (nullable)
    PerformanceID   *uint64          `json:"performance_id"`   // sales.performance_id (venue sales only)
    UserID          uint64           `json:"user_id"`          // sales.user_id
    Customer        string           `json:"customer"`         // sales.customer
    Buttons         int              `json:"buttons"`          // sales.buttons
    Donation        decimal.Decimal  `json:"donation"`         // sales.donation
    Amount          decimal.Decimal  `json:"amount"`           // sales.amount
    Completed       *time.Time       `json:"completed"`        // sales.completed (nullable)
    Cancelled       *time.Time       `json:"cancelled"`        // sales.cancelled (nullable)
    TransactionID   *string          `json:"transaction_id"`   // sales.transaction_id (nullable)
    TransactionType *TransactionType `json:"transaction_type"` // sales.transaction_type (nullable)
    TransactionFee  decimal.Decimal  `json:"transaction_fee"`  // sales.transaction_fee
    Notes           string           `json:"notes"`            // sales.notes
    CreatedAt       time.Time        `json:"created_at"`       // sales.created_at
}

// IsOnline reports whether the sale was made through the web shop.
func (s Sale) IsOnline() bool { return s.BoxOfficeID == nil && s.VenueID == nil }

// SaleContents are the aggregated children of a sale or basket.
type SaleContents struct {
    TicketCount  int             `json:"ticket_count"`
    TicketCost   decimal.Decimal `json:"ticket_cost"`
    FringerCount int             `json:"fringer_count"`
    FringerCost  decimal.Decimal `json:"fringer_cost"`
    PAYWCount    int             `json:"payw_count"`
    PAYWCost     decimal.Decimal `json:"payw_cost"`
}

// Refund returns previously sold tickets.  Amount is snapshotted as the sum
// of ticket costs when the refund completes.
type Refund struct {
    ID          uint64          `json:"id"`           // refunds.id
    UUID        string          `json:"uuid"`         // refunds.uuid
    FestivalID  uint64          `json:"festival_id"`  // refunds.festival_id
    BoxOfficeID *uint64         `json:"boxoffice_id"` // refunds.boxoffice_id (nullable, nil for online cancellations)
    UserID      uint64          `json:"user_id"`      // refunds.user_id
    Customer    string          `json:"customer"`     // refunds.customer
    Amount      decimal.Decimal `json:"amount"`       // refunds.amount
    Reason      string          `json:"reason"`       // refunds.reason
    Completed   *time.Time      `json:"completed"`    // refunds.completed (nullable)
    CreatedAt   time.Time       `json:"created_at"`   // refunds.created_at
}

// Basket is the per-user online cart.
type Basket struct {
    UserID  uint64 `json:"user_id"` // baskets.user_id
    Buttons int    `json:"buttons"` // baskets.buttons
}

// Donation is a festival donation taken through hosted checkout.
type Donation struct {
    ID            uint64          `json:"id"`             // donations.id
    FestivalID    uint64          `json:"festival_id"`    // donations.festival_id
    Email         string          `json:"email"`          // donations.email
    Amount        decimal.Decimal `json:"amount"`         // donations.amount
    TransactionID string          `json:"transaction_id"` // donations.transaction_id
    CreatedAt     time.Time       `json:"created_at"`     // donations.created_at
}
