package main

import (
	"context"

	"github.com/koustreak/tablegate/internal/config"
	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/filestore/minio"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/registry"
	"github.com/koustreak/tablegate/internal/schema"
	"github.com/koustreak/tablegate/internal/snapshot"
)

// app holds everything a command needs once the config is loaded.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	reg    *registry.Registry
	store  schema.SnapshotStore
	closer []func()
}

// loadApp reads the config and sets up logging. Connections and the
// snapshot store are opened on demand.
func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(&cfg.Log)
	logger.SetGlobal(log)
	return &app{cfg: cfg, log: log}, nil
}

// openConnections connects the given databases, or all of them when ids is empty.
func (a *app) openConnections(ctx context.Context, ids ...string) error {
	cfgs := a.cfg.Connections
	if len(ids) > 0 {
		cfgs = make([]database.Config, 0, len(ids))
		for _, id := range ids {
			c, err := a.cfg.Connection(id)
			if err != nil {
				return err
			}
			cfgs = append(cfgs, *c)
		}
	}

	reg, err := registry.Open(ctx, cfgs, registry.DefaultOpener, a.log)
	if err != nil {
		return err
	}
	a.reg = reg
	a.closer = append(a.closer, reg.Close)
	return nil
}

// openSnapshotStore connects the configured snapshot backend. The memory
// backend has none and leaves a.store nil.
func (a *app) openSnapshotStore(ctx context.Context) error {
	sc := a.cfg.SchemaCache
	switch sc.Backend {
	case config.BackendRedis:
		rs, err := snapshot.NewRedisStore(ctx, sc.Redis)
		if err != nil {
			return err
		}
		a.store = rs
		a.closer = append(a.closer, func() { _ = rs.Close() })
		a.log.InfoWith("schema snapshots in redis", map[string]any{"addr": sc.Redis.Addr})

	case config.BackendObjectStore:
		fs, err := minio.New(ctx, &sc.ObjectStore.Config)
		if err != nil {
			return err
		}
		a.store = snapshot.NewObjectStore(fs, sc.ObjectStore.Prefix)
		a.closer = append(a.closer, func() { _ = fs.Close() })
		a.log.InfoWith("schema snapshots in object store", map[string]any{
			"endpoint": sc.ObjectStore.Endpoint,
			"bucket":   sc.ObjectStore.Bucket,
		})
	}
	return nil
}

// cache builds the schema cache over the configured snapshot store.
func (a *app) cache() *schema.Cache {
	opts := []schema.CacheOption{schema.WithLogger(a.log)}
	if a.store != nil {
		opts = append(opts, schema.WithSnapshotStore(a.store))
	}
	return schema.NewCache(opts...)
}

func (a *app) Close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		a.closer[i]()
	}
}
