// Package blob stores binary attachments (signature images, scanned
// certificates) and returns stable URLs for the document records. Three
// backends are provided: in-memory for tests, filesystem for single-node
// deployments, and S3 for production.
package blob

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/sigeso/sst-registry/pkg/sentinel"
)

// Store persists opaque blobs under a kind prefix and returns their URL.
type Store interface {
	// Upload writes data under a generated key and returns a URL that can
	// be stored on a document record.
	Upload(ctx context.Context, data []byte, kind string) (string, error)
}

func newKey(kind string) string {
	return path.Join(kind, uuid.NewString())
}

// MemoryStore keeps blobs in a map. Test and development use only.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

// Upload stores a copy of data and returns a mem:// URL.
func (s *MemoryStore) Upload(_ context.Context, data []byte, kind string) (string, error) {
	key := newKey(kind)
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.blobs[key] = cp
	s.mu.Unlock()
	return "mem://" + key, nil
}

// Get returns a stored blob by its URL.
func (s *MemoryStore) Get(url string) ([]byte, error) {
	key := url[len("mem://"):]
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", key, sentinel.ErrNotFound)
	}
	return data, nil
}

// Len reports the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// FilesystemStore writes blobs under a base directory and returns file://
// URLs or, when BaseURL is set, URLs under that prefix.
type FilesystemStore struct {
	baseDir string
	baseURL string
}

// NewFilesystemStore creates a store rooted at baseDir. baseURL is optional;
// when empty the returned URLs use the file scheme.
func NewFilesystemStore(baseDir, baseURL string) (*FilesystemStore, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating blob dir %s: %w", baseDir, err)
	}
	return &FilesystemStore{baseDir: baseDir, baseURL: baseURL}, nil
}

// Upload writes data to a file under the kind subdirectory.
func (s *FilesystemStore) Upload(_ context.Context, data []byte, kind string) (string, error) {
	key := newKey(kind)
	full := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o640); err != nil {
		return "", fmt.Errorf("writing blob %s: %w", key, err)
	}
	if s.baseURL != "" {
		return s.baseURL + "/" + key, nil
	}
	return "file://" + full, nil
}
