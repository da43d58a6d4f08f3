// Package db opens the local SQLite database holding console users and draft
// snapshots.
package db

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
)

// DB is the subset of database/sql the stores run on.
type DB interface {
	InitDB() error
	Get() *sql.DB
	Close() error

	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)

	// InTx runs fn in a transaction, committing when it returns nil.
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

var dbLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	dbLogger = l
}
