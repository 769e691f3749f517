package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
)

// MemoryStore keeps objects in memory. URLs point at BaseURL.
type MemoryStore struct {
	BaseURL string
	// ChunkSize controls how often progress is reported.
	ChunkSize int

	mu      sync.RWMutex
	objects map[string][]byte
	types   map[string]string
}

// NewMemoryStore returns an empty store serving URLs under baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		BaseURL:   baseURL,
		ChunkSize: 256 * 1024,
		objects:   make(map[string][]byte),
		types:     make(map[string]string),
	}
}

var _ ObjectStore = (*MemoryStore)(nil)

func (m *MemoryStore) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string, progress ProgressFunc) error {
	var buf bytes.Buffer
	chunk := make([]byte, m.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if progress != nil {
				progress(int64(buf.Len()), size)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", path, err)
		}
	}
	m.mu.Lock()
	m.objects[path] = buf.Bytes()
	m.types[path] = contentType
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) URL(_ context.Context, path string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[path]; !ok {
		return "", fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return m.BaseURL + "/" + url.PathEscape(path), nil
}

func (m *MemoryStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	delete(m.objects, path)
	delete(m.types, path)
	return nil
}

// Object returns the stored bytes and content type of path.
func (m *MemoryStore) Object(path string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	return data, m.types[path], ok
}
