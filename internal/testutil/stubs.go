// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ObjectStoreStub is an in-memory object store for tests. It records every
// operation and can be told to fail selectively.
type ObjectStoreStub struct {
	mu      sync.Mutex
	objects map[string][]byte

	// PutErr, GetErr and DeleteErr, when set, are returned by the matching
	// operation instead of touching the in-memory state.
	PutErr    error
	GetErr    error
	DeleteErr error

	// Deleted records every key passed to Delete, including repeats.
	Deleted []string
}

// NewObjectStoreStub creates an empty in-memory object store.
func NewObjectStoreStub() *ObjectStoreStub {
	return &ObjectStoreStub{objects: make(map[string][]byte)}
}

// Put stores data under key.
func (s *ObjectStoreStub) Put(_ context.Context, key string, data []byte, _ string) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[key] = cp
	return nil
}

// Get retrieves data stored under key.
func (s *ObjectStoreStub) Get(_ context.Context, key string) ([]byte, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

// Delete removes the object under key. Missing keys are not an error.
func (s *ObjectStoreStub) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	s.Deleted = append(s.Deleted, key)
	s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// PresignedGetURL returns a deterministic fake URL.
func (s *ObjectStoreStub) PresignedGetURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return fmt.Sprintf("https://store.test/%s", key), nil
}

// Has reports whether a blob is currently stored under key.
func (s *ObjectStoreStub) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

// DeleteCount returns how many times Delete was called for key.
func (s *ObjectStoreStub) DeleteCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range s.Deleted {
		if k == key {
			n++
		}
	}
	return n
}
