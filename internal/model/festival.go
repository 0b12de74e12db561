package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// Festival is the tenant every other row belongs to.  Users, venues, box
// offices and the whole ledger are scoped to one festival.
//
// Fields:
//  ID               – primary key identifier.
//  Slug             – short unique name used in public URLs.
//  Name             – display name.
//  ButtonPrice      – price of one festival button (badge).
//  OnlineSalesOpen  – online sales start (nullable, open when unset).
//  OnlineSalesClose – online sales end (nullable, open when unset).
type Festival struct {
    ID               uint64          `json:"id"`                  // festivals.id
    Slug             string          `json:"slug"`                // festivals.slug
    Name             string          `json:"name"`                // festivals.name
    ButtonPrice      decimal.Decimal `json:"button_price"`        // festivals.button_price
    OnlineSalesOpen  *time.Time      `json:"online_sales_open"`   // festivals.online_sales_open
    OnlineSalesClose *time.Time      `json:"online_sales_close"`  // festivals.online_sales_close
}

// IsOnlineSalesOpen reports whether the online shop accepts orders at t.
func (f Festival) IsOnlineSalesOpen(t time.Time) bool {
    if f.OnlineSalesOpen != nil && t.Before(*f.OnlineSalesOpen) {
        return false
    }
    if f.OnlineSalesClose != nil && !t.Before(*f.OnlineSalesClose) {
        return false
    }
    return true
}

// BoxOffice is a central sales desk.
type BoxOffice struct {
    ID         uint64 `json:"id"`          // box_offices.id
    FestivalID uint64 `json:"festival_id"` // box_offices.festival_id
    Name       string `json:"name"`        // box_offices.name
}

// Venue hosts performances.  Capacity is nullable; a venue without a
// capacity never has tickets available.
type Venue struct {
    ID         uint64 `json:"id"`          // venues.id
    FestivalID uint64 `json:"festival_id"` // venues.festival_id
    Name       string `json:"name"`        // venues.name
    Capacity   *int   `json:"capacity"`    // venues.capacity (nullable)
    IsTicketed bool   `json:"is_ticketed"` // venues.is_ticketed
}
