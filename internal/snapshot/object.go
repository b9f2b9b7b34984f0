package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"path"

	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/filestore"
	"github.com/koustreak/tablegate/internal/schema"
)

// ObjectStore keeps JSON snapshots as <prefix>/<connID>.json in an object
// store bucket. JSON keeps them readable with any S3 browser.
type ObjectStore struct {
	store  filestore.Store
	prefix string
}

var _ schema.SnapshotStore = (*ObjectStore)(nil)

// NewObjectStore stores snapshots under prefix (default "schemas").
func NewObjectStore(store filestore.Store, prefix string) *ObjectStore {
	if prefix == "" {
		prefix = "schemas"
	}
	return &ObjectStore{store: store, prefix: prefix}
}

func (s *ObjectStore) key(connID string) string {
	return path.Join(s.prefix, connID+".json")
}

// Load returns the stored snapshot, or (nil, nil) when there is none.
func (s *ObjectStore) Load(ctx context.Context, connID string) (schema.SchemaMap, error) {
	rc, _, err := s.store.GetObject(ctx, s.key(connID))
	if errs.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var env envelope
	if err := json.NewDecoder(rc).Decode(&env); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "decode schema snapshot", err)
	}
	return env.unwrap(connID), nil
}

// Save overwrites the snapshot for connID.
func (s *ObjectStore) Save(ctx context.Context, connID string, m schema.SchemaMap) error {
	b, err := json.Marshal(wrap(connID, m))
	if err != nil {
		return errs.Wrap(errs.ErrKindInvalidInput, "encode schema snapshot", err)
	}
	return s.store.PutObject(ctx, s.key(connID), bytes.NewReader(b), int64(len(b)), "application/json")
}

// Delete removes the snapshot for connID.
func (s *ObjectStore) Delete(ctx context.Context, connID string) error {
	return s.store.RemoveObject(ctx, s.key(connID))
}

// List returns the connection ids that have a stored snapshot.
func (s *ObjectStore) List(ctx context.Context) ([]string, error) {
	objs, err := s.store.ListObjects(ctx, s.prefix+"/")
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(objs))
	for _, o := range objs {
		base := path.Base(o.Key)
		if path.Ext(base) == ".json" {
			ids = append(ids, base[:len(base)-len(".json")])
		}
	}
	return ids, nil
}
