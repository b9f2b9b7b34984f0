// Package registry maps connection ids to live database handles. It is an
// explicit value handed to the service layer, never a package global, so
// tests can build isolated registries.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/database/dialect"
	"github.com/koustreak/tablegate/internal/database/mysql"
	"github.com/koustreak/tablegate/internal/database/postgres"
	"github.com/koustreak/tablegate/internal/database/sqlite"
	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/schema"
)

// Conn is one registered connection.
type Conn struct {
	ID      string
	Dialect dialect.Dialect
	DB      database.DB

	// PgSchema is the Postgres schema to introspect; ignored elsewhere.
	PgSchema string

	// QueryTimeout bounds each request's database work. Zero disables it.
	QueryTimeout time.Duration
}

// Reader returns the catalog reader for this connection.
func (c *Conn) Reader() (schema.Reader, error) {
	return schema.NewReader(c.Dialect, c.DB, c.PgSchema)
}

// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{conns: make(map[string]*Conn)}
}

// Register adds c. Ids must be unique and usable as a URL path segment.
func (r *Registry) Register(c *Conn) error {
	if c.ID == "" {
		return errs.New(errs.ErrKindInvalidInput, "connection id is required")
	}
	if c.DB == nil || c.Dialect == nil {
		return errs.Newf(errs.ErrKindInvalidInput, "connection %q needs a database and a dialect", c.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c.ID]; ok {
		return errs.Newf(errs.ErrKindConflict, "connection %q already registered", c.ID)
	}
	r.conns[c.ID] = c
	return nil
}

// Get returns the connection registered under id.
func (r *Registry) Get(id string) (*Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	if !ok {
		return nil, errs.Newf(errs.ErrKindNotFound, "unknown connection %q", id)
	}
	return c, nil
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes every connection and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.conns {
		c.DB.Close()
		delete(r.conns, id)
	}
}

// Opener connects one configured database.
type Opener func(ctx context.Context, cfg *database.Config) (database.DB, error)

// DefaultOpener dispatches on cfg.Driver.
func DefaultOpener(ctx context.Context, cfg *database.Config) (database.DB, error) {
	switch cfg.Driver {
	case database.DriverPostgres:
		return postgres.New(ctx, cfg)
	case database.DriverMySQL:
		return mysql.New(ctx, cfg)
	case database.DriverSQLite:
		return sqlite.New(ctx, cfg)
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported driver %q", cfg.Driver)
	}
}

// Open connects every configured database concurrently. If any fails, the
// ones already open are closed and the first error is returned.
func Open(ctx context.Context, cfgs []database.Config, open Opener, log *logger.Logger) (*Registry, error) {
	if open == nil {
		open = DefaultOpener
	}
	if log == nil {
		log = logger.Nop()
	}

	conns := make([]*Conn, len(cfgs))
	g, gctx := errgroup.WithContext(ctx)
	for i := range cfgs {
		cfg := cfgs[i]
		cfg.ApplyDefaults()
		g.Go(func() error {
			d, err := dialect.Lookup(string(cfg.Driver))
			if err != nil {
				return err
			}
			db, err := open(gctx, &cfg)
			if err != nil {
				return errs.Wrap(errs.KindOf(err), "open connection "+cfg.ID, err)
			}
			conns[i] = &Conn{
				ID:           cfg.ID,
				Dialect:      d,
				DB:           db,
				PgSchema:     cfg.Schema,
				QueryTimeout: cfg.QueryTimeout,
			}
			log.InfoWith("connection opened", map[string]any{"conn": cfg.ID, "driver": d.Name()})
			return nil
		})
	}

	r := New()
	err := g.Wait()
	if err == nil {
		for _, c := range conns {
			if err = r.Register(c); err != nil {
				break
			}
		}
	}
	if err != nil {
		for _, c := range conns {
			if c != nil {
				c.DB.Close()
			}
		}
		return nil, err
	}
	return r, nil
}
