// Package storage provides the backing object store for uploaded media and
// the cleanup rules for superseded files.
package storage

import (
	"context"
	"time"
)

// ObjectStore is the backing blob store, addressed by opaque key. Delete of a
// missing key is not an error.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
