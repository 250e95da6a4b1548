package memory

import (
	"context"
	"sort"
	"sync"

	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/storage"
)

// TransactionArchiveStore is an in-memory implementation of
// storage.TransactionArchiveStore.
type TransactionArchiveStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.Transaction // keyed by transaction ID
}

// NewTransactionArchiveStore creates a new in-memory archive.
func NewTransactionArchiveStore() *TransactionArchiveStore {
	return &TransactionArchiveStore{
		data: make(map[int64]*domain.Transaction),
	}
}

// InsertBulk adds multiple entries. Re-archiving an ID replaces it.
func (s *TransactionArchiveStore) InsertBulk(_ context.Context, entries []*domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range entries {
		s.data[t.ID] = cloneTransaction(t)
	}
	return nil
}

// GetByUser retrieves archived entries for a user, ordered by ID ASC.
func (s *TransactionArchiveStore) GetByUser(_ context.Context, userID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, t := range s.data {
		if t.UserID == userID {
			result = append(result, cloneTransaction(t))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// MaxID returns the highest archived entry ID, 0 when empty.
func (s *TransactionArchiveStore) MaxID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var maxID int64
	for id := range s.data {
		if id > maxID {
			maxID = id
		}
	}
	return maxID, nil
}

// Verify interface compliance at compile time.
var _ storage.TransactionArchiveStore = (*TransactionArchiveStore)(nil)
