package memory

import (
	"context"
	"sync"

	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/storage"
)

// TransactionLogStore is an in-memory implementation of
// storage.TransactionLogStore. Entries are appended by UserStore within
// its balance-change critical section.
type TransactionLogStore struct {
	mu      sync.RWMutex
	entries []*domain.Transaction
	nextID  int64
}

// NewTransactionLogStore creates a new in-memory transaction log.
func NewTransactionLogStore() *TransactionLogStore {
	return &TransactionLogStore{nextID: 1}
}

// append stores a copy of t with a fresh ID and returns the stored copy.
// Called by UserStore while it holds its own lock, so a balance update
// and its log entry are never observed apart.
func (s *TransactionLogStore) append(t *domain.Transaction) *domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := cloneTransaction(t)
	entry.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, entry)
	return cloneTransaction(entry)
}

// GetByUser retrieves all entries for a user and currency, ordered by ID ASC.
func (s *TransactionLogStore) GetByUser(_ context.Context, userID string, currency domain.Currency) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, e := range s.entries {
		if e.UserID == userID && e.Currency == currency {
			result = append(result, cloneTransaction(e))
		}
	}
	return result, nil
}

// GetAfterID retrieves up to limit entries with ID > afterID, ordered by ID ASC.
func (s *TransactionLogStore) GetAfterID(_ context.Context, afterID int64, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, e := range s.entries {
		if e.ID > afterID {
			result = append(result, cloneTransaction(e))
			if len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TransactionLogStore = (*TransactionLogStore)(nil)
