package storage

import (
	"context"
	"strings"
	"sync"

	"intake/pkg/requestcontext"
)

type memoryBlob struct {
	data        []byte
	contentType string
}

// MemoryStore keeps blobs in process memory. Used in development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]memoryBlob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]memoryBlob)}
}

func (s *MemoryStore) Upload(ctx context.Context, data []byte, name, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	locator := "mem://" + ObjectName(requestcontext.Now(ctx), name)
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[locator] = memoryBlob{data: cp, contentType: contentType}
	return locator, nil
}

// Delete is idempotent.
func (s *MemoryStore) Delete(_ context.Context, locator string) error {
	if !strings.HasPrefix(locator, "mem://") {
		return errInvalidLocator
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, locator)
	return nil
}

// Exists reports whether locator is stored.
func (s *MemoryStore) Exists(locator string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[locator]
	return ok
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
