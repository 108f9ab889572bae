package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"deja/internal/ports/blob"
)

type object struct {
	data        []byte
	contentType string
}

// Store guarda los archivos en memoria (dev y tests).
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

func NewStore() *Store {
	return &Store{objects: map[string]object{}}
}

func (s *Store) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read blob: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("blob size mismatch: got %d want %d", len(data), size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{data: data, contentType: contentType}
	return nil
}

func (s *Store) Get(_ context.Context, key string) (io.ReadCloser, blob.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	if !ok {
		return nil, blob.Object{}, blob.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(o.data)), blob.Object{
		Key:         key,
		ContentType: o.contentType,
		Size:        int64(len(o.data)),
	}, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return blob.ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

// Len para tests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
