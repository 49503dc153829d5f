// Package storage copies uploaded media between keys of the object store.
package storage

import "context"

// Copier duplicates an object to a new key within the configured bucket.
type Copier interface {
	Copy(ctx context.Context, srcKey, dstKey string) error
}

var (
	_ Copier = (*S3)(nil)
	_ Copier = (*Memory)(nil)
)
