package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher performs one HTTP GET. Transport failures are returned as errors;
// HTTP status codes are not.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Response, error)
}

// Store persists domain and link records.
type Store interface {
	DomainExists(ctx context.Context, name string) (bool, error)
	InsertDomain(ctx context.Context, name string) error
	InsertLink(ctx context.Context, rawURL string, domainName string) error
	LinksForDomain(ctx context.Context, name string) ([]string, error)
	CountLinksForDomain(ctx context.Context, name string) (int, error)
}

// TxStore is implemented by stores that can group writes into one transaction.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher digests archived manifests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces event IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
