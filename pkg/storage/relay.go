package storage

import (
	"context"
	"io"
)

// Handle is the retrieval reference returned by a relay. Callers must
// persist it as returned; the relay may have adjusted the requested key.
type Handle struct {
	URL string
	Key string
}

// Target tells the HTTP layer how to satisfy a byte-retrieval request:
// either serve a local file or redirect to an external URL.
type Target struct {
	RedirectURL string
	LocalPath   string
}

// Relay persists raw file bytes somewhere durable. Deletion is best-effort
// everywhere it is used: orphaned bytes are acceptable, unreachable
// metadata is not.
type Relay interface {
	Store(ctx context.Context, key string, r io.Reader, size int64, contentType string) (Handle, error)
	Delete(ctx context.Context, key string) error
	Resolve(ctx context.Context, key string) (Target, error)
}
