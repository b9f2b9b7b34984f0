// Package sqlite provides the SQLite implementation of database.DB on top of
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/database/sqldb"
	"github.com/koustreak/tablegate/internal/errs"

	msqlite "modernc.org/sqlite" // registers the "sqlite" driver
)

// Primary SQLite result codes (the low byte of an extended code).
// Full list: https://www.sqlite.org/rescode.html
const (
	codePerm       = 3
	codeBusy       = 5
	codeLocked     = 6
	codeReadOnly   = 8
	codeCantOpen   = 14
	codeConstraint = 19
	codeAuth       = 23
)

// Driver is a SQLite implementation of database.DB.
type Driver struct {
	*sqldb.Driver
}

// New opens the SQLite database named by cfg.DSN (a file path, a file: URI
// or ":memory:") and pings it.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to open sqlite", err)
	}

	// Every connection to ":memory:" is a distinct database, and closing
	// the only one drops it, so it is never recycled.
	if isMemory(cfg.DSN) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(int(cfg.MaxConns))
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
		db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
	}

	d := Wrap(db)
	if err := d.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// Wrap adopts an already opened *sql.DB.
func Wrap(db *sql.DB) *Driver {
	return &Driver{Driver: sqldb.Wrap(db, "sqlite", mapError)}
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// mapError translates modernc sqlite errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return errs.Wrap(classifyCode(sqliteErr.Code()), fmt.Sprintf("%s: %s", msg, sqliteErr.Error()), err)
	}
	return sqldb.DefaultErrorMapper(err, msg)
}

func classifyCode(code int) errs.ErrKind {
	switch code & 0xff {
	case codeConstraint:
		return errs.ErrKindConflict
	case codeBusy, codeLocked:
		return errs.ErrKindTimeout
	case codePerm, codeAuth, codeReadOnly:
		return errs.ErrKindPermissionDenied
	case codeCantOpen:
		return errs.ErrKindConnectionFailed
	default:
		return errs.ErrKindQueryFailed
	}
}
