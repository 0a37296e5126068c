// Package storage defines the blob storage abstraction used to archive the
// normalized output file. Implementations exist for Google Cloud Storage and
// the local filesystem.
package storage

import "context"

// BlobStore writes one object and returns a URI for it.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}
