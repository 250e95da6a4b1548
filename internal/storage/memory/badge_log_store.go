package memory

import (
	"context"
	"sync"

	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/storage"
)

// BadgeLogStore is an in-memory implementation of storage.BadgeLogStore.
// Entries are appended by BadgeStore within its transfer critical section.
type BadgeLogStore struct {
	mu      sync.RWMutex
	entries []*domain.BadgeLogEntry
	nextID  int64
}

// NewBadgeLogStore creates a new in-memory badge audit log.
func NewBadgeLogStore() *BadgeLogStore {
	return &BadgeLogStore{nextID: 1}
}

// appendAll stores copies of the entries with fresh IDs. Called by
// BadgeStore after the whole batch validated, so a failed transfer never
// leaves audit entries behind.
func (s *BadgeLogStore) appendAll(entries []*domain.BadgeLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		entry := cloneBadgeLogEntry(e)
		entry.ID = s.nextID
		s.nextID++
		s.entries = append(s.entries, entry)
	}
}

// GetByBadgeID retrieves all entries for a badge, ordered by ID ASC.
func (s *BadgeLogStore) GetByBadgeID(_ context.Context, badgeID string) ([]*domain.BadgeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BadgeLogEntry
	for _, e := range s.entries {
		if e.BadgeID == badgeID {
			result = append(result, cloneBadgeLogEntry(e))
		}
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.BadgeLogStore = (*BadgeLogStore)(nil)
