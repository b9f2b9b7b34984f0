package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/schema"
)

// RedisConfig configures the Redis snapshot store.
type RedisConfig struct {
	Addr     string        `yaml:"addr" toml:"addr"`
	Password string        `yaml:"password" toml:"password"`
	DB       int           `yaml:"db" toml:"db"`
	Prefix   string        `yaml:"prefix" toml:"prefix"`
	TTL      time.Duration `yaml:"ttl" toml:"ttl"` // 0 keeps snapshots until refreshed
}

// RedisStore keeps msgpack-encoded snapshots under <prefix><connID>.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	owned  bool
}

var _ schema.SnapshotStore = (*RedisStore)(nil)

// NewRedisStore dials Redis and verifies it answers PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to ping redis", err)
	}

	s := NewRedisStoreFromClient(client, cfg.Prefix, cfg.TTL)
	s.owned = true
	return s, nil
}

// NewRedisStoreFromClient uses an existing client; Close leaves it open.
func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "tablegate:schema:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(connID string) string {
	return s.prefix + connID
}

// Load returns the stored snapshot, or (nil, nil) when there is none.
func (s *RedisStore) Load(ctx context.Context, connID string) (schema.SchemaMap, error) {
	b, err := s.client.Get(ctx, s.key(connID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, mapRedisError(err, "redis get failed")
	}
	return decodeMsgpack(connID, b)
}

// Save overwrites the snapshot for connID.
func (s *RedisStore) Save(ctx context.Context, connID string, m schema.SchemaMap) error {
	b, err := encodeMsgpack(connID, m)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(connID), b, s.ttl).Err(); err != nil {
		return mapRedisError(err, "redis set failed")
	}
	return nil
}

// Delete removes the snapshot for connID.
func (s *RedisStore) Delete(ctx context.Context, connID string) error {
	if err := s.client.Del(ctx, s.key(connID)).Err(); err != nil {
		return mapRedisError(err, "redis del failed")
	}
	return nil
}

// Close closes the client if this store dialed it.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func encodeMsgpack(connID string, m schema.SchemaMap) ([]byte, error) {
	b, err := msgpack.Marshal(wrap(connID, m))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "encode schema snapshot", err)
	}
	return b, nil
}

func decodeMsgpack(connID string, b []byte) (schema.SchemaMap, error) {
	var env envelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "decode schema snapshot", err)
	}
	return env.unwrap(connID), nil
}

func mapRedisError(err error, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
