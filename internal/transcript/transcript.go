// Package transcript holds the ordered list of entries shown in a chat.
package transcript

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/expat-assistant/internal/render"
)

var (
	// ErrEntryNotFound is returned for an unknown entry ID.
	ErrEntryNotFound = errors.New("transcript entry not found")
	// ErrAlreadyResolved is returned when a placeholder is resolved twice.
	ErrAlreadyResolved = errors.New("transcript entry already resolved")
	// ErrNotPending is returned when removing an entry that is not a placeholder.
	ErrNotPending = errors.New("transcript entry is not pending")
	// ErrPending is returned when patching an entry that has not been resolved yet.
	ErrPending = errors.New("transcript entry is still pending")
)

// Role is who an entry belongs to.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
)

// Entry is one bubble of the transcript.
type Entry struct {
	ID         string       `json:"id"`
	Role       Role         `json:"role"`
	Content    *render.Node `json:"content"`
	Status     Status       `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
}

func (e *Entry) clone() Entry {
	out := *e
	out.Content = e.Content.Clone()
	if e.ResolvedAt != nil {
		t := *e.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}

// Store is an append-only, ordered transcript. Entries are never reordered;
// a pending placeholder is either resolved once or removed.
type Store struct {
	mu      sync.RWMutex
	entries []*Entry
	index   map[string]*Entry
}

// New creates an empty transcript.
func New() *Store {
	return &Store{index: make(map[string]*Entry)}
}

// Append adds an entry at the end. A bot entry with nil content becomes a
// pending placeholder showing the typing indicator; everything else is
// resolved on arrival.
func (s *Store) Append(role Role, content *render.Node) Entry {
	now := time.Now().UTC()
	e := &Entry{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      role,
		CreatedAt: now,
	}
	if role == RoleBot && content == nil {
		e.Content = render.Typing()
		e.Status = StatusPending
	} else {
		if content == nil {
			content = &render.Node{Kind: render.KindEntry}
		}
		e.Content = content.Clone()
		e.Status = StatusResolved
		e.ResolvedAt = &now
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	s.index[e.ID] = e
	return e.clone()
}

// Resolve replaces a placeholder's content. It succeeds exactly once per entry.
func (s *Store) Resolve(id string, content *render.Node) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	if e.Status == StatusResolved {
		return Entry{}, ErrAlreadyResolved
	}

	now := time.Now().UTC()
	e.Content = content.Clone()
	e.Status = StatusResolved
	e.ResolvedAt = &now
	return e.clone(), nil
}

// Remove deletes a placeholder that is still pending.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[id]
	if !ok {
		return ErrEntryNotFound
	}
	if e.Status != StatusPending {
		return ErrNotPending
	}

	delete(s.index, id)
	for i, cur := range s.entries {
		if cur == e {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	return nil
}

// Patch edits the content of a resolved entry in place. If fn fails the
// entry is left untouched.
func (s *Store) Patch(id string, fn func(root *render.Node) error) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.index[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	if e.Status != StatusResolved {
		return Entry{}, ErrPending
	}

	content := e.Content.Clone()
	if err := fn(content); err != nil {
		return Entry{}, fmt.Errorf("patching entry %s: %w", id, err)
	}
	e.Content = content
	return e.clone(), nil
}

// Get returns a copy of one entry.
func (s *Store) Get(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.index[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return e.clone(), nil
}

// List returns copies of all entries in insertion order.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.clone())
	}
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Restore replaces the transcript with previously saved entries.
func (s *Store) Restore(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make([]*Entry, 0, len(entries))
	s.index = make(map[string]*Entry, len(entries))
	for i := range entries {
		e := entries[i].clone()
		s.entries = append(s.entries, &e)
		s.index[e.ID] = &e
	}
}
