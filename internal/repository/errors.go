// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services to distinguish between different failure scenarios without
// inspecting driver errors. For example, ErrNoRowsAffected indicates that a
// conditional update or delete matched nothing, while ErrEmailExists signals
// a unique-key violation on users.email.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by key finds no row.
var ErrNotFound = errors.New("not found")

// ErrNoRowsAffected is returned when a conditional UPDATE or DELETE matched
// zero rows.  Callers decide whether that means "missing" or "not yours".
var ErrNoRowsAffected = errors.New("no rows affected")

// ErrEmailExists is returned when inserting or updating a user would
// duplicate an existing email.
var ErrEmailExists = errors.New("email already exists")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL unique-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
