// Package repository holds the typed gorm stores the core reads and writes
// through. Each store exposes only the lookups its consumers need.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned by point lookups that match no live row.
	ErrNotFound = errors.New("record not found")

	// ErrNotProvisioned means the RBAC tables have not been migrated yet.
	ErrNotProvisioned = errors.New("rbac schema not provisioned")
)

// pgUndefinedTable is SQLSTATE 42P01.
const pgUndefinedTable = "42P01"

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Page normalises pagination input the same way the generic controllers do.
func Page(page, limit int) (offset, size int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 200 {
		limit = 200
	}
	return (page - 1) * limit, limit
}
