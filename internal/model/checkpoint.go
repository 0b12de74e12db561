package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Checkpoint is a manual count of cash, buttons and fringers taken at a box
// office, or when a venue opens or closes a performance.  Only Notes may
// change after creation.
type Checkpoint struct {
    ID                 uint64          `json:"id"`                   // checkpoints.id
    UserID             *uint64         `json:"user_id"`              // checkpoints.user_id
    BoxOfficeID        *uint64         `json:"boxoffice_id"`         // checkpoints.boxoffice_id (nullable)
    VenueID            *uint64         `json:"venue_id"`             // checkpoints.venue_id (nullable)
    OpenPerformanceID  *uint64         `json:"open_performance_id"`  // checkpoints.open_performance_id (nullable, unique)
    ClosePerformanceID *uint64         `json:"close_performance_id"` // checkpoints.close_performance_id (nullable, unique)
    Cash               decimal.Decimal `json:"cash"`                 // checkpoints.cash
    Buttons            int             `json:"buttons"`              // checkpoints.buttons
    Fringers           int             `json:"fringers"`             // checkpoints.fringers
    Notes              string          `json:"notes"`                // checkpoints.notes
    CreatedAt          time.Time       `json:"created_at"`           // checkpoints.created_at
}
