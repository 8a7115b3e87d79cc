package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// Backend is an in-memory implementation of the simplepublish.BlobStore
// interface. Intended for tests and local development.
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
	updated map[string]time.Time

	// urlPrefix fakes a public URL so the attachment flow can run without
	// a real object store.
	urlPrefix string
}

// New creates a new in-memory media backend.
func New() *Backend {
	return &Backend{
		objects:   make(map[string][]byte),
		updated:   make(map[string]time.Time),
		urlPrefix: "memory://media",
	}
}

// Upload stores the file contents.
func (b *Backend) Upload(ctx context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = data
	b.updated[key] = time.Now()
	return nil
}

// Download streams the stored contents.
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, simplepublish.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the stored contents.
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return simplepublish.ErrBlobNotFound
	}
	delete(b.objects, key)
	delete(b.updated, key)
	return nil
}

// Meta retrieves metadata for a stored file.
func (b *Backend) Meta(ctx context.Context, key string) (*simplepublish.BlobMeta, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, simplepublish.ErrBlobNotFound
	}
	return &simplepublish.BlobMeta{
		Key:       key,
		Size:      int64(len(data)),
		MimeType:  "application/octet-stream",
		UpdatedAt: b.updated[key],
	}, nil
}

// DownloadURL returns a synthetic URL for the stored file.
func (b *Backend) DownloadURL(ctx context.Context, key string) (string, error) {
	return fmt.Sprintf("%s/%s", b.urlPrefix, key), nil
}
