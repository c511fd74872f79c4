// Package caching provides in-memory stores for the display engine.
package caching

import (
	"sync"
	"time"

	"github.com/gjbm2/screen-machine-sub001/internal/domain/entities/display"
	"github.com/gjbm2/screen-machine-sub001/internal/infrastructure/observability/logging"
)

type metadataEntry struct {
	meta      *display.Metadata
	storedAt  time.Time
	expiresAt time.Time
}

// MetadataStore caches extracted metadata per (imageURL, tagName) with a
// TTL, so repeated loads of the same image do not re-query the extractor.
type MetadataStore struct {
	entries map[string]*metadataEntry
	ttl     time.Duration
	mu      sync.RWMutex
	logger  *logging.ChanneledLogger
}

// NewMetadataStore creates a metadata cache store.
func NewMetadataStore(ttl time.Duration, logger *logging.ChanneledLogger) *MetadataStore {
	if logger != nil {
		logger.Cache().Info("Initializing metadata cache store", "ttl", ttl)
	}
	return &MetadataStore{
		entries: make(map[string]*metadataEntry),
		ttl:     ttl,
		logger:  logger,
	}
}

// Get retrieves cached metadata if present and unexpired.
func (ms *MetadataStore) Get(imageURL, tagName string) (*display.Metadata, bool) {
	key := imageURL + "|" + tagName

	ms.mu.RLock()
	entry, exists := ms.entries[key]
	ms.mu.RUnlock()

	if !exists || time.Now().After(entry.expiresAt) {
		if ms.logger != nil {
			ms.logger.Cache().Debug("Cache operation", "operation", "get", "type", "metadata", "key", key, "hit", false)
		}
		return nil, false
	}

	if ms.logger != nil {
		ms.logger.Cache().Debug("Cache operation", "operation", "get", "type", "metadata", "key", key, "hit", true)
	}
	return entry.meta, true
}

// Set stores metadata for an image.
func (ms *MetadataStore) Set(imageURL, tagName string, meta *display.Metadata) {
	key := imageURL + "|" + tagName
	now := time.Now()

	ms.mu.Lock()
	ms.entries[key] = &metadataEntry{
		meta:      meta,
		storedAt:  now,
		expiresAt: now.Add(ms.ttl),
	}
	ms.mu.Unlock()
}

// Purge removes expired entries and returns how many were dropped.
func (ms *MetadataStore) Purge() int {
	now := time.Now()

	ms.mu.Lock()
	defer ms.mu.Unlock()

	dropped := 0
	for key, entry := range ms.entries {
		if now.After(entry.expiresAt) {
			delete(ms.entries, key)
			dropped++
		}
	}
	if dropped > 0 && ms.logger != nil {
		ms.logger.Cache().Debug("Metadata cache purged", "dropped", dropped, "remaining", len(ms.entries))
	}
	return dropped
}

// Len reports the number of cached entries, expired or not.
func (ms *MetadataStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.entries)
}
