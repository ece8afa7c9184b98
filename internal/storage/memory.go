package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryStore is an in-process ImageStore.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	bucket  string
	baseURL string

	// PutErr and DeleteErr, when set, fail the matching call.
	PutErr    error
	DeleteErr error
}

func NewMemoryStore(baseURL, bucket string) *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}, bucket: bucket, baseURL: baseURL}
}

func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return "", s.PutErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}
	s.objects[key] = data
	return ObjectURL(s.baseURL, s.bucket, key), nil
}

func (s *MemoryStore) Delete(_ context.Context, objectURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	key, err := KeyFromURL(objectURL, s.bucket)
	if err != nil {
		return err
	}
	delete(s.objects, key)
	return nil
}

// Has reports whether key is stored.
func (s *MemoryStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
