package blobstore

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process ObjectStore for tests and local runs.
// Presigned URLs point at a fake host and are never fetched.
type MemoryStore struct {
	mu      sync.Mutex
	granted []string
	deleted []string
}

var _ ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty fake store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) PresignUpload(_ context.Context, key, _ string, ttl time.Duration) (PresignedUpload, error) {
	m.mu.Lock()
	m.granted = append(m.granted, key)
	m.mu.Unlock()

	return PresignedUpload{
		URL:       fmt.Sprintf("https://uploads.invalid/%s", key),
		Key:       key,
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, key)
	m.mu.Unlock()
	return nil
}

// Granted returns the keys presigned so far.
func (m *MemoryStore) Granted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.granted...)
}

// Deleted returns the keys deleted so far.
func (m *MemoryStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}
