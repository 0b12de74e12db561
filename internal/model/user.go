package model

import "time"

// Roles stored in users.role and carried in the JWT "role" claim.
const (
    RoleAdmin     = "ADMIN"
    RoleBoxOffice = "BOXOFFICE"
    RoleVenue     = "VENUE"
    RoleCustomer  = "CUSTOMER"
)

// User represents an application user record as stored in the `users`
// table.  Every user belongs to exactly one festival; the same e-mail may
// register with several festivals.
//
// Fields:
//  ID           – primary key identifier of the user.
//  FestivalID   – festival the account belongs to.
//  Email        – e-mail address, unique per festival.
//  PasswordHash – bcrypt hashed password.
//  Role         – ADMIN, BOXOFFICE, VENUE or CUSTOMER.
//  IsActive     – whether the account may log in.
type User struct {
    ID           uint64    // users.id
    FestivalID   uint64    // users.festival_id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// IsStaff reports whether the user works a box office or venue.
func (u User) IsStaff() bool {
    return u.Role == RoleAdmin || u.Role == RoleBoxOffice || u.Role == RoleVenue
}
