package model

import "time"

// Show is a production in the festival programme.
type Show struct {
    ID          uint64  `json:"id"`           // shows.id
    FestivalID  uint64  `json:"festival_id"`  // shows.festival_id
    VenueID     *uint64 `json:"venue_id"`     // shows.venue_id (nullable)
    VenueName   string  `json:"venue_name"`   // joined venues.name
    Name        string  `json:"name"`         // shows.name
    IsCancelled bool    `json:"is_cancelled"` // shows.is_cancelled
}

// Performance is one dated showing of a show.  Tickets are always issued
// against a performance.
type Performance struct {
    ID       uint64    `json:"id"`        // performances.id
    UUID     string    `json:"uuid"`      // performances.uuid
    ShowID   uint64    `json:"show_id"`   // performances.show_id
    ShowName string    `json:"show_name"` // joined shows.name
    VenueID  *uint64   `json:"venue_id"`  // joined shows.venue_id
    StartsAt time.Time `json:"starts_at"` // performances.starts_at
    Notes    string    `json:"notes"`     // performances.notes
}

// Availability is the admission-control snapshot for a performance.
type Availability struct {
    PerformanceID uint64 `json:"performance_id"`
    Capacity      *int   `json:"capacity"`
    Sold          int    `json:"sold"`
    Refunded      int    `json:"refunded"`
    Available     int    `json:"available"`
}
