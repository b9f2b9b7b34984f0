// Package sqldb is the database/sql-backed core shared by the MySQL and
// SQLite drivers. It wraps a *sql.DB with sqlx so result sets can be
// materialized with MapScan, and routes every native error through the
// owning driver's error mapper.
package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/errs"
)

// ErrorMapper translates a native driver error into *errs.Error.
type ErrorMapper func(err error, msg string) *errs.Error

// Driver implements database.DB on top of database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	db       *sqlx.DB
	mapError ErrorMapper
}

var _ database.DB = (*Driver)(nil)

// Wrap adopts an already opened *sql.DB. driverName is the database/sql
// driver name ("mysql", "sqlite", …); m may be nil for DefaultErrorMapper.
func Wrap(db *sql.DB, driverName string, m ErrorMapper) *Driver {
	if m == nil {
		m = DefaultErrorMapper
	}
	return &Driver{db: sqlx.NewDb(db, driverName), mapError: m}
}

// Ping verifies the database is reachable.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return d.mapError(err, "ping failed")
	}
	return nil
}

// Close releases the pool.
func (d *Driver) Close() {
	_ = d.db.Close()
}

// Query executes a SQL statement that returns multiple rows.
func (d *Driver) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := d.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, d.mapError(err, "query failed")
	}
	return &sqlxRows{rows: rows, mapError: d.mapError}, nil
}

// QueryRow executes a SQL statement expected to return at most one row.
func (d *Driver) QueryRow(ctx context.Context, query string, args ...any) (database.Row, error) {
	return &sqlRow{row: d.db.QueryRowContext(ctx, query, args...), mapError: d.mapError}, nil
}

// Exec executes a statement and reports affected rows and, when the driver
// supports it, the generated insert id.
func (d *Driver) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return database.Result{}, d.mapError(err, "exec failed")
	}

	var out database.Result
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		out.LastInsertID = &id
	}
	return out, nil
}

// DB returns the underlying *sql.DB (for advanced use)
func (d *Driver) DB() *sql.DB {
	return d.db.DB
}

// --- sqlx wrappers ---

type sqlxRows struct {
	rows     *sqlx.Rows
	mapError ErrorMapper
}

func (r *sqlxRows) Next() bool                 { return r.rows.Next() }
func (r *sqlxRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqlxRows) Close()                     { _ = r.rows.Close() }

func (r *sqlxRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return r.mapError(err, "scan failed")
	}
	return nil
}

func (r *sqlxRows) MapScan(dest map[string]any) error {
	if err := r.rows.MapScan(dest); err != nil {
		return r.mapError(err, "scan failed")
	}
	return nil
}

func (r *sqlxRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return r.mapError(err, "row iteration failed")
	}
	return nil
}

type sqlRow struct {
	row      *sql.Row
	mapError ErrorMapper
}

func (r *sqlRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return r.mapError(err, "scan failed")
	}
	return nil
}

// DefaultErrorMapper classifies the errors every database/sql driver shares.
func DefaultErrorMapper(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
