package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// Backend is a filesystem implementation of the simplepublish.BlobStore interface
type Backend struct {
	baseDir   string
	urlPrefix string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	URLPrefix string // URL prefix the server exposes the directory under
}

// New creates a new filesystem media backend
func New(config Config) (simplepublish.BlobStore, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   config.BaseDir,
		urlPrefix: config.URLPrefix,
	}, nil
}

// Upload writes the file under the base directory
func (b *Backend) Upload(ctx context.Context, key string, r io.Reader) error {
	filePath := filepath.Join(b.baseDir, key)

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, r); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Download opens the stored file
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(b.baseDir, key))
	if os.IsNotExist(err) {
		return nil, simplepublish.ErrBlobNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes the stored file and any directories it leaves empty
func (b *Backend) Delete(ctx context.Context, key string) error {
	filePath := filepath.Join(b.baseDir, key)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return simplepublish.ErrBlobNotFound
	}
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// Meta retrieves metadata for a stored file, sniffing the content type
func (b *Backend) Meta(ctx context.Context, key string) (*simplepublish.BlobMeta, error) {
	filePath := filepath.Join(b.baseDir, key)

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, simplepublish.ErrBlobNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	mimeType := "application/octet-stream"
	if file, err := os.Open(filePath); err == nil {
		defer file.Close()
		buffer := make([]byte, 512)
		if n, err := file.Read(buffer); err == nil {
			mimeType = http.DetectContentType(buffer[:n])
		}
	}

	return &simplepublish.BlobMeta{
		Key:       key,
		Size:      info.Size(),
		MimeType:  mimeType,
		UpdatedAt: info.ModTime(),
	}, nil
}

// DownloadURL joins the configured prefix with the file key
func (b *Backend) DownloadURL(ctx context.Context, key string) (string, error) {
	if b.urlPrefix == "" {
		return "", errors.New("direct download required for filesystem backend")
	}
	return fmt.Sprintf("%s/%s", b.urlPrefix, key), nil
}

// cleanupEmptyDirectories recursively removes empty directories up to baseDir
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir {
		return
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
