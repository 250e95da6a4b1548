package memory

import (
	"context"
	"sync"

	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu   sync.RWMutex
	data map[string]*domain.User // keyed by user_id
	log  *TransactionLogStore
}

// NewUserStore creates a new in-memory user store. Balance changes append
// to the given transaction log within the same critical section.
func NewUserStore(log *TransactionLogStore) *UserStore {
	return &UserStore{
		data: make(map[string]*domain.User),
		log:  log,
	}
}

// Create adds a new user. Returns ErrDuplicateKey if user_id exists.
func (s *UserStore) Create(_ context.Context, u *domain.User) error {
	if u == nil || u.UserID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[u.UserID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[u.UserID] = cloneUser(u)
	return nil
}

// GetByID retrieves a user by ID. Returns ErrNotFound if not exists.
func (s *UserStore) GetByID(_ context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.data[userID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneUser(u), nil
}

// ApplyBalanceChange atomically applies the change and appends the
// transaction-log entry. The floor check runs against the live stored
// balance under the store lock, so concurrent withdrawals cannot both
// pass it.
func (s *UserStore) ApplyBalanceChange(_ context.Context, c storage.BalanceChange) (*domain.Transaction, error) {
	if c.UserID == "" || !c.Currency.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.data[c.UserID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	balance := u.Balance(c.Currency)
	newBalance := balance + c.Change
	if c.Change < 0 && newBalance < c.MinRemaining {
		return nil, storage.ErrBalanceFloor
	}

	if c.Currency == domain.CurrencyTokens {
		u.TokenBalance = newBalance
	} else {
		u.PokeyenBalance = newBalance
	}

	return s.log.append(&domain.Transaction{
		UserID:     c.UserID,
		Currency:   c.Currency,
		Change:     c.Change,
		NewBalance: newBalance,
		CreatedAt:  c.CreatedAt,
		Reason:     c.Reason,
		Metadata:   c.Metadata,
	}), nil
}

// SetSelectedBadge sets or clears the user's displayed-badge species.
func (s *UserStore) SetSelectedBadge(_ context.Context, userID string, species *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.data[userID]
	if !exists {
		return storage.ErrNotFound
	}
	u.SelectedBadge = cloneStrPtr(species)
	return nil
}

// ClearSelectedBadgeIf clears the selected badge only when it currently
// equals species. Unknown users and non-matching selections are no-ops.
func (s *UserStore) ClearSelectedBadgeIf(_ context.Context, userID, species string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.data[userID]
	if !exists {
		return nil
	}
	if u.SelectedBadge != nil && *u.SelectedBadge == species {
		u.SelectedBadge = nil
	}
	return nil
}

// Verify interface compliance at compile time.
var _ storage.UserStore = (*UserStore)(nil)
