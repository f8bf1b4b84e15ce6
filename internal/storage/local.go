package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fr0stylo/linevault/internal/app/ports"
)

// Local stores media on the local filesystem. Re-uploading the same name
// overwrites the existing file, so retries are idempotent.
type Local struct {
	dir string
}

// NewLocal creates the storage directory if needed and returns the backend.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		dir = "storage"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Upload writes content under name and returns a durable reference.
func (l *Local) Upload(_ context.Context, content []byte, name, contentType string) (ports.UploadedFile, error) {
	name = filepath.Base(name)
	if name == "" || name == "." {
		return ports.UploadedFile{}, fmt.Errorf("%w: empty object name", ports.ErrUpload)
	}
	if err := os.WriteFile(filepath.Join(l.dir, name), content, 0o644); err != nil {
		return ports.UploadedFile{}, fmt.Errorf("%w: %v", ports.ErrUpload, err)
	}
	return ports.UploadedFile{
		ID:          name,
		Name:        name,
		URL:         "/storage/" + name,
		ContentType: contentType,
		Size:        int64(len(content)),
		UploadedAt:  time.Now().UTC(),
	}, nil
}

var _ ports.BlobStore = (*Local)(nil)
