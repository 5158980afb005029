package database

import (
	"context"
	"errors"
	"sync"
)

// HNSWRebuilder is an interface for components that keep an HNSW index over known faces
type HNSWRebuilder interface {
	// RebuildHNSW rebuilds the in-memory HNSW index
	RebuildHNSW(ctx context.Context) error
	// HNSWCount returns the number of items in the HNSW index
	HNSWCount() int
	// IsHNSWEnabled returns whether HNSW is enabled
	IsHNSWEnabled() bool
	// SaveHNSWIndex saves the current index to disk (if path configured)
	SaveHNSWIndex() error
}

var (
	registryMu  sync.RWMutex
	activeStore Store
	faceHNSW    HNSWRebuilder
)

// ErrNotInitialized is returned when no storage backend has been registered.
var ErrNotInitialized = errors.New("database backend not initialized")

// RegisterBackend registers the active storage backend.
// This is called by the sqlite and postgres packages to avoid import cycles.
func RegisterBackend(store Store) {
	registryMu.Lock()
	defer registryMu.Unlock()
	activeStore = store
}

// ResetBackend clears the registered backend and rebuilder.
func ResetBackend() {
	registryMu.Lock()
	defer registryMu.Unlock()
	activeStore = nil
	faceHNSW = nil
}

// IsInitialized returns whether a storage backend has been registered.
func IsInitialized() bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return activeStore != nil
}

// GetStore returns the registered backend
func GetStore() (Store, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if activeStore == nil {
		return nil, ErrNotInitialized
	}
	return activeStore, nil
}

// RegisterFaceHNSWRebuilder registers the HNSW rebuilder for known faces.
// This allows rebuilding the in-memory HNSW index without knowing the concrete type.
func RegisterFaceHNSWRebuilder(rebuilder HNSWRebuilder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	faceHNSW = rebuilder
}

// GetFaceHNSWRebuilder returns the registered face HNSW rebuilder, or nil if not registered.
func GetFaceHNSWRebuilder() HNSWRebuilder {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return faceHNSW
}
