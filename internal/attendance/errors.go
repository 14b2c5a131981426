package attendance

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrForeignKeyViolation = errors.New("referenced row does not exist")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidInput        = errors.New("invalid input")
)

// classify maps driver errors onto the package sentinels.
// Unrecognized errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrConstraintViolation
		case "23503":
			return ErrForeignKeyViolation
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return ErrConstraintViolation
		case sqlite3.ErrConstraintForeignKey:
			return ErrForeignKeyViolation
		}
	}
	return err
}
