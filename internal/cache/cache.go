// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache memoizes conversion results by input content so that the
// same upload is converted once.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/pdiddy/cvat2labelme/internal/convert"
)

// Key identifies an input by the SHA-256 of its content and its size.
func Key(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%s-%d", hex.EncodeToString(sum[:]), len(content))
}

// Stats describes the contents of a Store.
type Stats struct {
	Entries int `json:"entries" yaml:"entries"`
	Files   int `json:"files" yaml:"files"`
}

// Store holds conversion results by key. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the result stored under key. ok is false on a miss.
	Get(ctx context.Context, key string) (res *convert.Result, ok bool, err error)
	// Put stores res under key, replacing any earlier entry.
	Put(ctx context.Context, key string, res *convert.Result) error
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Stats reports the number of entries and files held.
	Stats(ctx context.Context) (Stats, error)
	// Close releases the store's resources.
	Close() error
}

// MemoryStore is a Store backed by a map.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]*convert.Result
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]*convert.Result)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*convert.Result, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[key]
	return res, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, res *convert.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[key] = res
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = make(map[string]*convert.Result)
	return nil
}

func (m *MemoryStore) Stats(context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{Entries: len(m.results)}
	for _, r := range m.results {
		s.Files += r.Len()
	}
	return s, nil
}

func (m *MemoryStore) Close() error { return nil }

// Warner receives warnings about cache failures that do not stop a
// conversion.
type Warner interface {
	Warning(format string, v ...any)
}

// Memo runs a Converter through a Store.
type Memo struct {
	store Store
	conv  *convert.Converter
	warn  Warner
}

// NewMemo returns a Memo caching conv's results in store. warn may be nil.
func NewMemo(store Store, conv *convert.Converter, warn Warner) *Memo {
	return &Memo{store: store, conv: conv, warn: warn}
}

// Convert returns the cached result for content or converts it and caches
// the result. Failed conversions are not cached. A failing store degrades
// to converting without the cache.
func (m *Memo) Convert(ctx context.Context, content []byte) (*convert.Result, error) {
	key := Key(content)

	res, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.warning("cache lookup failed: %v", err)
	} else if ok {
		return res, nil
	}

	res, err = m.conv.Convert(content)
	if err != nil {
		return nil, err
	}

	if err := m.store.Put(ctx, key, res); err != nil {
		m.warning("cache store failed: %v", err)
	}
	return res, nil
}

// Clear empties the underlying store.
func (m *Memo) Clear(ctx context.Context) error {
	return m.store.Clear(ctx)
}

func (m *Memo) warning(format string, v ...any) {
	if m.warn != nil {
		m.warn.Warning(format, v...)
	}
}
