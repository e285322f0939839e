package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MemoryStorage keeps uploaded files in process; used when no bucket is configured.
type MemoryStorage struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{baseURL: baseURL, objects: make(map[string][]byte)}
}

func (s *MemoryStorage) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.objects[key] = buf.Bytes()
	s.mu.Unlock()
	return s.baseURL + "/" + key, nil
}

// Object returns a stored file's content.
func (s *MemoryStorage) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}

// ServeHTTP serves stored files by key, for local runs without a bucket.
func (s *MemoryStorage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, ok := s.Object(strings.TrimPrefix(r.URL.Path, "/"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	_, _ = w.Write(data)
}
