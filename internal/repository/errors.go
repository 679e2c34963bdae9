// Package repository holds the MySQL data access layer.  Repositories
// return raw driver errors or the sentinels below; classification into
// client-facing errors happens in the service layer.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by key matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key.  The
// original driver error stays wrapped so DuplicateKeyOn still works.
var ErrDuplicate = errors.New("duplicate entry")

const mysqlDuplicateEntry = 1062

// IsDuplicateKey reports whether err is a MySQL duplicate entry error.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, ErrDuplicate) {
		return true
	}
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// DuplicateKeyOn reports whether err is a duplicate entry on the named
// unique key (e.g. "booking_ref").  MySQL names the key in the message as
// 'table.key' or just 'key' depending on server version.
func DuplicateKeyOn(err error, key string) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return false
	}
	return strings.Contains(me.Message, "'"+key+"'") || strings.Contains(me.Message, "."+key+"'")
}

// classify wraps duplicate key violations with ErrDuplicate.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return &dupError{err: err}
	}
	return err
}

type dupError struct{ err error }

func (e *dupError) Error() string   { return e.err.Error() }
func (e *dupError) Unwrap() []error { return []error{ErrDuplicate, e.err} }

// inClause returns "?,?,?" for len(ids) and the matching argument slice.
func inClause(ids []uint64) (string, []interface{}) {
	ph := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		args[i] = id
	}
	return strings.Join(ph, ","), args
}
