// Package objectstore holds the durable destinations renditions are promoted
// to: a NATS JetStream object store bucket, or a plain directory mirror.
package objectstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("object not found")

// Object is a stored object with its headers.
type Object struct {
	Key          string
	Data         []byte
	ContentType  string
	CacheControl string
}

// Store is a durable object store.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType, cacheControl string) error
	Get(ctx context.Context, key string) (*Object, error)
	Close() error
}
