// Package snapshot provides schema.SnapshotStore implementations: Redis for
// a shared low-latency copy and object storage for a durable one.
package snapshot

import (
	"time"

	"github.com/koustreak/tablegate/internal/schema"
)

// formatVersion is bumped whenever the stored layout of schema types
// changes. Snapshots with another version are treated as misses.
const formatVersion = 1

// envelope is what actually gets stored.
type envelope struct {
	Version    int              `json:"version" msgpack:"version"`
	Connection string           `json:"connection" msgpack:"connection"`
	SavedAt    time.Time        `json:"savedAt" msgpack:"saved_at"`
	Tables     schema.SchemaMap `json:"tables" msgpack:"tables"`
}

func wrap(connID string, m schema.SchemaMap) envelope {
	return envelope{
		Version:    formatVersion,
		Connection: connID,
		SavedAt:    time.Now().UTC(),
		Tables:     m,
	}
}

// unwrap returns nil for snapshots written by another format version or
// for another connection.
func (e envelope) unwrap(connID string) schema.SchemaMap {
	if e.Version != formatVersion || e.Connection != connID {
		return nil
	}
	if e.Tables == nil {
		return schema.SchemaMap{}
	}
	return e.Tables
}
