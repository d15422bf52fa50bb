package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDatabaseUnavailable = errors.New("database unavailable: check the connection string and that pgvector is installed")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidEmbedding    = errors.New("invalid embedding")
	ErrVectorUnsupported   = errors.New("vector operations are not supported by this database")
	ErrRawQueriesDisabled  = errors.New("raw queries are disabled: set PG_ALLOW_RAW_QUERIES=true to enable")
)

// PostgreSQL SQLSTATE codes inspected by mapVectorError
const (
	sqlStateUndefinedFunction = "42883"
	sqlStateUndefinedObject   = "42704"
)

// mapVectorError marks a missing vector type or operator with ErrVectorUnsupported,
// keeping the *pgconn.PgError in the chain. Other errors pass through.
func mapVectorError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case sqlStateUndefinedFunction, sqlStateUndefinedObject:
		msg := strings.ToLower(pgErr.Message)
		if strings.Contains(msg, "vector") || strings.Contains(msg, "<=>") {
			return fmt.Errorf("%w: %w", ErrVectorUnsupported, err)
		}
	}
	return err
}

func invalidArg(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
