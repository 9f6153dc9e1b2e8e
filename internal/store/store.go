// Package store persists session snapshots so a widget session survives a
// gateway restart or moves between replicas.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/capitalize-ai/expat-assistant/internal/chat"
	"github.com/capitalize-ai/expat-assistant/internal/transcript"
)

// ErrNotFound is returned when no snapshot exists for a session.
var ErrNotFound = errors.New("session snapshot not found")

// SessionStore saves and loads session snapshots.
type SessionStore interface {
	Save(ctx context.Context, snap chat.Snapshot) error
	Load(ctx context.Context, sessionID string) (chat.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

type memoryItem struct {
	snap      chat.Snapshot
	expiresAt time.Time
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// MemoryStore keeps snapshots in process.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   time.Duration
}

// NewMemoryStore creates an in-process store. A ttl of zero keeps snapshots forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), ttl: ttl}
}

func (m *MemoryStore) Save(_ context.Context, snap chat.Snapshot) error {
	item := memoryItem{snap: copySnapshot(snap)}
	if m.ttl > 0 {
		item.expiresAt = time.Now().Add(m.ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[snap.ID] = item
	return nil
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (chat.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[sessionID]
	if !ok {
		return chat.Snapshot{}, ErrNotFound
	}
	if item.expired(time.Now()) {
		delete(m.items, sessionID)
		return chat.Snapshot{}, ErrNotFound
	}
	return copySnapshot(item.snap), nil
}

// Purge drops every expired snapshot and reports how many were removed.
func (m *MemoryStore) Purge() int {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, item := range m.items {
		if item.expired(now) {
			delete(m.items, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of snapshots held, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, sessionID)
	return nil
}

func copySnapshot(s chat.Snapshot) chat.Snapshot {
	out := s
	out.Entries = make([]transcript.Entry, len(s.Entries))
	for i, e := range s.Entries {
		e.Content = e.Content.Clone()
		if e.ResolvedAt != nil {
			t := *e.ResolvedAt
			e.ResolvedAt = &t
		}
		out.Entries[i] = e
	}
	return out
}
