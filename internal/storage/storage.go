// Package storage provides object storage for schema snapshot blobs.
// Implementations include S3 and local filesystem for testing.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrPutFailed      = errors.New("put failed")
	ErrGetFailed      = errors.New("get failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts blob storage for snapshot envelopes. Keys are
// slash-separated paths; values are opaque byte blobs.
type ObjectStorage interface {
	// Put stores a blob under the given key, overwriting any previous
	// value.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the blob stored under key. Returns ErrObjectNotFound
	// when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob under key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a blob is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all keys under the given prefix, sorted ascending.
	List(ctx context.Context, prefix string) ([]string, error)
}
