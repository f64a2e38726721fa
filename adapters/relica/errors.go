package relica

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/coregx/submanager"
)

const (
	mysqlDuplicateEntry     = 1062
	postgresUniqueViolation = "23505"
)

// classify converts a driver error into a categorized error: uniqueness
// violations become DUPLICATE, sql.ErrNoRows becomes NOT_FOUND and
// everything else DATABASE_ERROR.
func classify(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return submanager.NewErrorWithCause(submanager.ErrCodeNotFound, message, err)
	}
	if isUniqueViolation(err) {
		return submanager.NewErrorWithCause(submanager.ErrCodeDuplicate, message, err)
	}
	return submanager.NewErrorWithCause(submanager.ErrCodeDatabase, message, err)
}

func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == postgresUniqueViolation
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}
