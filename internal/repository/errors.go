// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow handlers to distinguish
// between failure scenarios: ErrNotFound when a row does not exist in the
// caller's festival, ErrForbidden when a staff member acts on someone
// else's sale, ErrConflict when a unique or dependent row blocks a write.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row does not exist or belongs to another
// festival.  Handlers translate it into 404.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate it into 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write violates a unique key or a
// dependent row exists.  Handlers translate it into 409.
var ErrConflict = errors.New("conflict")

// notFound maps sql.ErrNoRows onto ErrNotFound and passes other errors through.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// duplicate reports a MySQL duplicate-key error.
func duplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
