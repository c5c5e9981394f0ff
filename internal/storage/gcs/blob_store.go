// Package gcs archives crawl manifests in Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config names the destination bucket.
type Config struct {
	Bucket string
}

// BlobStore uploads objects into one bucket.
type BlobStore struct {
	bucket *storage.BucketHandle
	name   string
}

// New binds a BlobStore to cfg.Bucket. The caller owns client.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	return &BlobStore{bucket: client.Bucket(cfg.Bucket), name: cfg.Bucket}, nil
}

// PutObject uploads data as object path and returns its gs:// URI. Manifests
// are small, so the upload is a single request rather than a resumable one.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path is required")
	}

	// Cancelling the writer's context is how an upload is aborted.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.bucket.Object(path).NewWriter(ctx)
	w.ChunkSize = 0
	w.ContentType = contentType
	if _, err := io.Copy(w, data); err != nil {
		cancel()
		_ = w.Close() //nolint:errcheck // upload already aborted
		return "", fmt.Errorf("upload gs://%s/%s: %w", s.name, path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize gs://%s/%s: %w", s.name, path, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.name, path), nil
}
