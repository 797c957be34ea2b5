package snapshot

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	dlerrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/internal/storage"
)

const keyPrefix = "snapshots/"

// Store persists snapshot envelopes in object storage, keyed by
// environment and snapshot name.
type Store struct {
	backend storage.ObjectStorage
}

// NewStore creates a snapshot store over the given backend.
func NewStore(backend storage.ObjectStorage) *Store {
	return &Store{backend: backend}
}

// Save encodes and stores a snapshot, returning its envelope metadata.
func (s *Store) Save(ctx context.Context, env, name, sql string) (Envelope, error) {
	blob := Encode(sql, time.Now())
	if err := s.backend.Put(ctx, key(env, name), blob); err != nil {
		return Envelope{}, dlerrors.NewStorageError(dlerrors.CodePutFailed,
			fmt.Sprintf("failed to store snapshot %s/%s", env, name), err)
	}
	_, meta, err := Decode(blob)
	return meta, err
}

// Load retrieves and decodes a stored snapshot.
func (s *Store) Load(ctx context.Context, env, name string) (string, Envelope, error) {
	blob, err := s.backend.Get(ctx, key(env, name))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", Envelope{}, dlerrors.NewStorageError(dlerrors.CodeObjectNotFound,
				fmt.Sprintf("snapshot %s/%s does not exist", env, name), err)
		}
		return "", Envelope{}, dlerrors.NewStorageError(dlerrors.CodeGetFailed,
			fmt.Sprintf("failed to load snapshot %s/%s", env, name), err)
	}
	return Decode(blob)
}

// Delete removes a stored snapshot. Missing snapshots are ignored.
func (s *Store) Delete(ctx context.Context, env, name string) error {
	return s.backend.Delete(ctx, key(env, name))
}

// List returns the snapshot names stored for an environment.
func (s *Store) List(ctx context.Context, env string) ([]string, error) {
	keys, err := s.backend.List(ctx, keyPrefix+env+"/")
	if err != nil {
		return nil, dlerrors.NewStorageError(dlerrors.CodeGetFailed,
			fmt.Sprintf("failed to list snapshots for %s", env), err)
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, path.Base(k))
	}
	return names, nil
}

func key(env, name string) string {
	return keyPrefix + env + "/" + name
}
