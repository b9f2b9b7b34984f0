// Package service exposes introspected tables as generic resources. It
// resolves a connection, loads its cached schema, builds one statement
// with the query builder and executes it.
package service

import (
	"context"

	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/database/dialect"
	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/query"
	"github.com/koustreak/tablegate/internal/registry"
	"github.com/koustreak/tablegate/internal/schema"
)

// Config holds query-layer settings.
type Config struct {
	// StrictRelationships turns an ambiguous unqualified relationship
	// lookup into an error instead of a warning.
	StrictRelationships bool `yaml:"strict_relationships" toml:"strict_relationships"`

	// MaxLimit caps list page sizes and applies when no limit is given.
	// Zero means unlimited.
	MaxLimit int `yaml:"max_limit" toml:"max_limit"`
}

// WriteResult is the outcome of a write. Dialects with RETURNING report the
// affected rows; the others only report counts, so callers must check
// Returning before reading Rows.
type WriteResult struct {
	Dialect      string           `json:"dialect"`
	Returning    bool             `json:"returning"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowsAffected *int64           `json:"rowsAffected,omitempty"`
	LastInsertID *int64           `json:"lastInsertId,omitempty"`
}

// Service is safe for concurrent use.
type Service struct {
	reg   *registry.Registry
	cache *schema.Cache
	cfg   Config
	log   *logger.Logger
}

// New wires a Service. A nil logger discards output.
func New(reg *registry.Registry, cache *schema.Cache, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{reg: reg, cache: cache, cfg: cfg, log: log}
}

// Connections returns the registered connection ids.
func (s *Service) Connections() []string {
	return s.reg.IDs()
}

// Ping checks that the connection's database is reachable.
func (s *Service) Ping(ctx context.Context, connID string) error {
	conn, err := s.reg.Get(connID)
	if err != nil {
		return err
	}
	ctx, cancel := s.withTimeout(ctx, conn)
	defer cancel()
	return conn.DB.Ping(ctx)
}

// Schema returns the connection's SchemaMap, introspecting on first use.
func (s *Service) Schema(ctx context.Context, connID string) (schema.SchemaMap, error) {
	conn, err := s.reg.Get(connID)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, conn)
}

// Tables returns the connection's table names in sorted order.
func (s *Service) Tables(ctx context.Context, connID string) ([]string, error) {
	m, err := s.Schema(ctx, connID)
	if err != nil {
		return nil, err
	}
	return m.Names(), nil
}

// Table returns one table's schema.
func (s *Service) Table(ctx context.Context, connID, table string) (*schema.TableSchema, error) {
	_, ts, err := s.resolve(ctx, connID, table)
	return ts, err
}

// RefreshSchema re-introspects the connection and replaces the cached map.
func (s *Service) RefreshSchema(ctx context.Context, connID string) (schema.SchemaMap, error) {
	conn, err := s.reg.Get(connID)
	if err != nil {
		return nil, err
	}
	r, err := conn.Reader()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx, conn)
	defer cancel()
	return s.cache.Refresh(ctx, conn.ID, r)
}

// ClearSchema drops the cached map so the next request re-introspects.
// Call it after DDL changes a connection's tables.
func (s *Service) ClearSchema(ctx context.Context, connID string) error {
	if _, err := s.reg.Get(connID); err != nil {
		return err
	}
	s.cache.Clear(ctx, connID)
	return nil
}

func (s *Service) load(ctx context.Context, conn *registry.Conn) (schema.SchemaMap, error) {
	if m, ok := s.cache.Get(conn.ID); ok {
		return m, nil
	}
	r, err := conn.Reader()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx, conn)
	defer cancel()
	return s.cache.Load(ctx, conn.ID, r)
}

// resolve validates the table name and looks it up in the schema.
func (s *Service) resolve(ctx context.Context, connID, table string) (*registry.Conn, *schema.TableSchema, error) {
	conn, err := s.reg.Get(connID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := dialect.Sanitize(conn.Dialect, table); err != nil {
		return nil, nil, err
	}
	m, err := s.load(ctx, conn)
	if err != nil {
		return nil, nil, err
	}
	ts, ok := m.Table(table)
	if !ok {
		return nil, nil, errs.Newf(errs.ErrKindNotFound, "table %q not found in %q", table, connID)
	}
	return conn, ts, nil
}

func (s *Service) builder(conn *registry.Conn, ts *schema.TableSchema) *query.Builder {
	return query.New(ts, conn.Dialect, query.WithStrictRelationships(s.cfg.StrictRelationships))
}

func (s *Service) withTimeout(ctx context.Context, conn *registry.Conn) (context.Context, context.CancelFunc) {
	if conn.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, conn.QueryTimeout)
}

// fetch runs a row-returning statement.
func (s *Service) fetch(ctx context.Context, conn *registry.Conn, stmt query.Statement) ([]map[string]any, error) {
	s.warn(ctx, conn, stmt)

	ctx, cancel := s.withTimeout(ctx, conn)
	defer cancel()

	rows, err := conn.DB.Query(ctx, stmt.Text, stmt.Values...)
	if err != nil {
		return nil, err
	}
	return database.ScanRows(rows)
}

// write runs a write statement, as a query when it carries RETURNING *.
func (s *Service) write(ctx context.Context, conn *registry.Conn, stmt query.Statement) (*WriteResult, error) {
	res := &WriteResult{Dialect: conn.Dialect.Name(), Returning: stmt.Returning}
	if stmt.Returning {
		rows, err := s.fetch(ctx, conn, stmt)
		if err != nil {
			return nil, err
		}
		n := int64(len(rows))
		res.Rows = rows
		res.RowsAffected = &n
		return res, nil
	}

	s.warn(ctx, conn, stmt)
	ctx, cancel := s.withTimeout(ctx, conn)
	defer cancel()

	r, err := conn.DB.Exec(ctx, stmt.Text, stmt.Values...)
	if err != nil {
		return nil, err
	}
	res.RowsAffected = &r.RowsAffected
	res.LastInsertID = r.LastInsertID
	return res, nil
}

func (s *Service) warn(ctx context.Context, conn *registry.Conn, stmt query.Statement) {
	if len(stmt.Warnings) == 0 {
		return
	}
	log := logger.FromContextOr(ctx, s.log)
	for _, w := range stmt.Warnings {
		log.WarnWith(w, map[string]any{"conn": conn.ID})
	}
}
