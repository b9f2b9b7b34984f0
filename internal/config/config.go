// Package config loads the tablegate configuration file.
//
// The format follows the file extension: .yaml/.yml or .toml. ${NAME}
// references are replaced with environment variables before parsing, so
// secrets such as DSNs can stay out of the file:
//
//	connections:
//	  - id: shop
//	    driver: postgres
//	    dsn: ${SHOP_DSN}
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/database/dialect"
	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/filestore"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/server"
	"github.com/koustreak/tablegate/internal/service"
	"github.com/koustreak/tablegate/internal/snapshot"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Schema cache backends.
const (
	BackendMemory      = "memory"
	BackendRedis       = "redis"
	BackendObjectStore = "objectstore"
)

// Config is the root of the configuration file.
type Config struct {
	Server      server.Config     `yaml:"server" toml:"server"`
	Log         logger.Config     `yaml:"log" toml:"log"`
	Connections []database.Config `yaml:"connections" toml:"connections"`
	SchemaCache CacheConfig       `yaml:"schema_cache" toml:"schema_cache"`
	Query       service.Config    `yaml:"query" toml:"query"`
}

// CacheConfig selects where introspected schemas are snapshotted. The
// in-process cache is always used; redis and objectstore add a shared
// snapshot so restarts and sibling instances skip introspection.
type CacheConfig struct {
	Backend     string               `yaml:"backend" toml:"backend"`
	Redis       snapshot.RedisConfig `yaml:"redis" toml:"redis"`
	ObjectStore ObjectStoreConfig    `yaml:"objectstore" toml:"objectstore"`
}

// ObjectStoreConfig is a bucket plus the key prefix snapshots live under.
type ObjectStoreConfig struct {
	filestore.Config `yaml:",inline"`

	Prefix string `yaml:"prefix" toml:"prefix"`
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "read config", err)
	}

	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, format)
}

// Parse decodes data, applies defaults and validates the result. Unknown
// keys are rejected so typos do not silently fall back to defaults.
func Parse(data []byte, format Format) (*Config, error) {
	data = expandEnv(data)

	var cfg Config
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "parse yaml config", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "parse toml config", err)
		}
		if unknown := md.Undecoded(); len(unknown) > 0 {
			keys := make([]string, len(unknown))
			for i, k := range unknown {
				keys[i] = k.String()
			}
			return nil, errs.Newf(errs.ErrKindInvalidInput, "unknown config keys: %s", strings.Join(keys, ", "))
		}
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported config format %q", format)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every zero-valued setting.
func (c *Config) ApplyDefaults() {
	c.Server.ApplyDefaults()

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.TimeFormat == "" {
		c.Log.TimeFormat = "rfc3339"
	}

	for i := range c.Connections {
		c.Connections[i].ApplyDefaults()
	}

	if c.SchemaCache.Backend == "" {
		c.SchemaCache.Backend = BackendMemory
	}
	if c.SchemaCache.ObjectStore.Provider == "" {
		c.SchemaCache.ObjectStore.Provider = filestore.ProviderMinIO
	}
	if c.SchemaCache.ObjectStore.Bucket == "" {
		c.SchemaCache.ObjectStore.Bucket = "tablegate"
	}
}

// Validate checks the settings that have no sensible default. Driver
// aliases such as "postgresql" or "mariadb" are normalized in place.
func (c *Config) Validate() error {
	if len(c.Connections) == 0 {
		return errs.New(errs.ErrKindInvalidInput, "at least one connection is required")
	}

	seen := make(map[string]bool, len(c.Connections))
	for i := range c.Connections {
		conn := &c.Connections[i]
		if conn.ID == "" {
			return errs.Newf(errs.ErrKindInvalidInput, "connections[%d]: id is required", i)
		}
		if seen[conn.ID] {
			return errs.Newf(errs.ErrKindInvalidInput, "connections[%d]: duplicate id %q", i, conn.ID)
		}
		seen[conn.ID] = true

		d, err := dialect.Lookup(string(conn.Driver))
		if err != nil {
			return errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("connection %q", conn.ID), err)
		}
		conn.Driver = database.Driver(d.Name())
		if conn.Driver == database.DriverPostgres && conn.Schema == "" {
			conn.Schema = "public"
		}
		if conn.DSN == "" {
			return errs.Newf(errs.ErrKindInvalidInput, "connection %q: dsn is required", conn.ID)
		}
	}

	switch c.SchemaCache.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.SchemaCache.Redis.Addr == "" {
			return errs.New(errs.ErrKindInvalidInput, "schema_cache.redis.addr is required for the redis backend")
		}
	case BackendObjectStore:
		if c.SchemaCache.ObjectStore.Endpoint == "" {
			return errs.New(errs.ErrKindInvalidInput, "schema_cache.objectstore.endpoint is required for the objectstore backend")
		}
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unknown schema_cache.backend %q", c.SchemaCache.Backend)
	}

	if c.Query.MaxLimit < 0 {
		return errs.New(errs.ErrKindInvalidInput, "query.max_limit must not be negative")
	}
	return nil
}

// Connection returns the connection configured under id.
func (c *Config) Connection(id string) (*database.Config, error) {
	for i := range c.Connections {
		if c.Connections[i].ID == id {
			return &c.Connections[i], nil
		}
	}
	return nil, errs.Newf(errs.ErrKindNotFound, "no connection %q in config", id)
}

func formatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", errs.Newf(errs.ErrKindInvalidInput, "cannot infer config format from %q (want .yaml, .yml or .toml)", path)
	}
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${NAME} with the variable's value. Bare $NAME is left
// alone because DSNs and passwords may contain '$'.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := envRef.FindSubmatch(ref)[1]
		return []byte(os.Getenv(string(name)))
	})
}
