package model

import (
	"context"
	"io"
)

// BlobStorage stores encrypted document payloads too large to keep inline in
// the database row. Objects are opaque ciphertext; keys are derived from the
// document id.
type BlobStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
