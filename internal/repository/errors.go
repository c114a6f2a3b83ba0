// Package repository holds the MySQL data access layer.  Tenant scoped
// lookups take the company id as an explicit argument and distinguish a row
// that does not exist (ErrNotFound) from a row that belongs to another
// company (ErrForbidden).  Handlers and services translate these sentinels
// into HTTP 404 / 403 / 409 responses.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the row exists but is owned by a different
// company than the caller's.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned on a uniqueness violation or when a delete is
// blocked by dependent rows.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL duplicate key error.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// mapErr converts driver errors into package sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case isDuplicate(err):
		return ErrConflict
	}
	return err
}

// ownedBy returns ErrForbidden when the row's company differs from the caller's.
func ownedBy(rowCompanyID, companyID string) error {
	if rowCompanyID != companyID {
		return ErrForbidden
	}
	return nil
}
