package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// BlobStore persists meal images and returns a URL (or path) for later
// retrieval. The analyzer uploads concurrently with model inference, so
// implementations must be safe for concurrent use.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// FSBlobStore stores blobs on the local filesystem under a base directory.
type FSBlobStore struct {
	dir     string
	baseURL string
}

// NewFSBlobStore creates the base directory if needed.
func NewFSBlobStore(dir, baseURL string) (*FSBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "blob: create dir")
	}
	return &FSBlobStore{dir: dir, baseURL: baseURL}, nil
}

func (s *FSBlobStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	path := filepath.Join(s.dir, key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "blob: write %s", key)
	}
	if s.baseURL != "" {
		return s.baseURL + "/" + key, nil
	}
	return path, nil
}
