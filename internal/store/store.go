// Package store keeps the state shared by all shopper sessions: catalog snapshots and
// the ledger of checkout sessions whose payment status was already queried.
package store

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// MemorySnapshots is a process-local snapshot cache.
type MemorySnapshots struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{items: make(map[string]memoryItem), now: time.Now}
}

func (m *MemorySnapshots) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt) {
		delete(m.items, key)
		return nil, ErrCacheMiss
	}
	return item.data, nil
}

// Set stores data under key. A non-positive ttl keeps it until deleted.
func (m *MemorySnapshots) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := memoryItem{data: data}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}

func (m *MemorySnapshots) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// MemoryLedger records consumed checkout sessions for a single process.
// Expired session ids are swept at most once per retention period.
type MemoryLedger struct {
	mu        sync.Mutex
	consumed  map[string]time.Time
	retention time.Duration
	nextSweep time.Time
	now       func() time.Time
}

func NewMemoryLedger(retention time.Duration) *MemoryLedger {
	return &MemoryLedger{consumed: make(map[string]time.Time), retention: retention, now: time.Now}
}

// MarkConsumed reports true only for the first call with a given session id.
func (m *MemoryLedger) MarkConsumed(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweep(now)
	if at, ok := m.consumed[sessionID]; ok && !m.expired(at, now) {
		return false, nil
	}
	m.consumed[sessionID] = now
	return true, nil
}

func (m *MemoryLedger) expired(at, now time.Time) bool {
	return m.retention > 0 && now.Sub(at) >= m.retention
}

func (m *MemoryLedger) sweep(now time.Time) {
	if m.retention <= 0 || now.Before(m.nextSweep) {
		return
	}
	maps.DeleteFunc(m.consumed, func(_ string, at time.Time) bool { return m.expired(at, now) })
	m.nextSweep = now.Add(m.retention)
}
