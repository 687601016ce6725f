package storage

import (
	"context"
	"io"
)

// Object is what a bucket reports back after a write.
type Object struct {
	Key  string
	URL  string
	ETag string
}

// ObjectStore is the bucket behind the snapshot archive.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (*Object, error)
	Remove(ctx context.Context, key string) error
	URL(key string) string
}
