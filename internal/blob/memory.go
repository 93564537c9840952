package blob

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemStore is an in-memory Store for tests. The error hooks inject
// failures at specific phases of the upload workflow.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	PutErr    error // returned by Put when set
	DeleteErr error // returned by Delete when set
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{objects: map[string][]byte{}}
}

func (s *MemStore) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = data
	return nil
}

func (s *MemStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemStore) Delete(ctx context.Context, path string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; !ok {
		return ErrNotFound
	}
	delete(s.objects, path)
	return nil
}

// Len reports the number of stored objects.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Has reports whether an object exists at path.
func (s *MemStore) Has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	return ok
}
