package store

import (
	"errors"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	mysqlErrNoSuchTable = 1146
	mysqlErrTableExists = 1050
	pgErrUndefinedTable = "42P01"
	pgErrDuplicateTable = "42P07"
)

// IsMissingTable reports whether err is the one recognized transient
// database failure: the target relation does not exist yet. It is the only
// error the ingest and read paths recover from, via a single
// create-and-retry.
func IsMissingTable(err error) bool {
	if err == nil {
		return false
	}
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrNoSuchTable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUndefinedTable
	}
	// the pure-Go sqlite driver exposes no stable error code type
	return strings.Contains(err.Error(), "no such table")
}

// IsTableExists reports whether err means the table was already created.
// A concurrent ingest may win the race to create the table on first use;
// that outcome counts as success for the loser's schema provisioning.
func IsTableExists(err error) bool {
	if err == nil {
		return false
	}
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrTableExists
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrDuplicateTable
	}
	return strings.Contains(err.Error(), "already exists")
}
