package memory

import (
	"context"
	"sort"
	"sync"

	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/storage"
)

// BadgeStore is an in-memory implementation of storage.BadgeStore.
type BadgeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Badge // keyed by badge_id
	log  *BadgeLogStore
}

// NewBadgeStore creates a new in-memory badge store. Transfers append
// audit entries to the given badge log within the same critical section.
func NewBadgeStore(log *BadgeLogStore) *BadgeStore {
	return &BadgeStore{
		data: make(map[string]*domain.Badge),
		log:  log,
	}
}

// Insert adds a new badge. Returns ErrDuplicateKey if badge_id exists.
func (s *BadgeStore) Insert(_ context.Context, b *domain.Badge) error {
	if b == nil || b.BadgeID == "" || b.Species == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[b.BadgeID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[b.BadgeID] = cloneBadge(b)
	return nil
}

// GetByID retrieves a badge by its ID. Returns ErrNotFound if not exists.
func (s *BadgeStore) GetByID(_ context.Context, badgeID string) (*domain.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.data[badgeID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneBadge(b), nil
}

// FindAllByOwner retrieves badges for the given owner; a nil owner
// selects unowned badges. Ordered by created_at ASC, badge_id ASC.
func (s *BadgeStore) FindAllByOwner(_ context.Context, userID *string) ([]*domain.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Badge
	for _, b := range s.data {
		if ownerEqual(b.UserID, userID) {
			result = append(result, cloneBadge(b))
		}
	}
	sortBadgesByCreation(result)
	return result, nil
}

// CountByOwnerAndSpecies counts the owner's badges of one species.
func (s *BadgeStore) CountByOwnerAndSpecies(_ context.Context, userID, species string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, b := range s.data {
		if b.UserID != nil && *b.UserID == userID && b.Species == species {
			count++
		}
	}
	return count, nil
}

// CountByOwnerGroupedBySpecies tallies the owner's badges per species,
// ordered by species ASC.
func (s *BadgeStore) CountByOwnerGroupedBySpecies(_ context.Context, userID string) ([]domain.SpeciesCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, b := range s.data {
		if b.UserID != nil && *b.UserID == userID {
			counts[b.Species]++
		}
	}

	result := make([]domain.SpeciesCount, 0, len(counts))
	for species, count := range counts {
		result = append(result, domain.SpeciesCount{Species: species, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Species < result[j].Species
	})
	return result, nil
}

// SetSalePrice sets or clears the sale listing. Both sale fields change
// together; a nil price clears both regardless of prior state.
func (s *BadgeStore) SetSalePrice(_ context.Context, badgeID string, price *int64, listedAt int64) (*domain.Badge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, exists := s.data[badgeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	if price == nil {
		b.SellPrice = nil
		b.SellingSince = nil
	} else {
		b.SellPrice = cloneInt64Ptr(price)
		since := listedAt
		b.SellingSince = &since
	}
	return cloneBadge(b), nil
}

// FindForSale retrieves listed badges matching the filter. Ordered by
// selling_since ASC, badge_id ASC.
func (s *BadgeStore) FindForSale(_ context.Context, f domain.BadgeFilter) ([]*domain.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Badge
	for _, b := range s.data {
		if !b.ForSale() {
			continue
		}
		if f.UserID != nil && !ownerEqual(b.UserID, f.UserID) {
			continue
		}
		if f.Species != nil && b.Species != *f.Species {
			continue
		}
		if f.Source != nil && b.Source != *f.Source {
			continue
		}
		if f.Form != nil && (b.Form == nil || *b.Form != *f.Form) {
			continue
		}
		if f.Shiny != nil && b.Shiny != *f.Shiny {
			continue
		}
		result = append(result, cloneBadge(b))
	}

	sort.Slice(result, func(i, j int) bool {
		if *result[i].SellingSince != *result[j].SellingSince {
			return *result[i].SellingSince < *result[j].SellingSince
		}
		return result[i].BadgeID < result[j].BadgeID
	})
	return result, nil
}

// SumSalePricesByOwner sums sell_price over the owner's listed badges.
func (s *BadgeStore) SumSalePricesByOwner(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum int64
	for _, b := range s.data {
		if b.ForSale() && b.UserID != nil && *b.UserID == userID {
			sum += *b.SellPrice
		}
	}
	return sum, nil
}

// TransferOwnership applies the whole batch atomically. Each badge is
// validated and mutated in batch order against the evolving staged
// state, so a badge named twice fails its second occurrence the same way
// a just-committed concurrent transfer would. A stale badge anywhere in
// the batch leaves ownership and the audit log untouched.
func (s *BadgeStore) TransferOwnership(_ context.Context, batch []storage.OwnershipTransfer) ([]*domain.Badge, error) {
	if len(batch) == 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]*domain.Badge, len(batch))
	updated := make([]*domain.Badge, 0, len(batch))
	logEntries := make([]*domain.BadgeLogEntry, 0, len(batch))
	for _, tr := range batch {
		b, ok := staged[tr.BadgeID]
		if !ok {
			stored, exists := s.data[tr.BadgeID]
			if !exists {
				return nil, &storage.StaleOwnershipError{BadgeID: tr.BadgeID}
			}
			b = cloneBadge(stored)
			staged[tr.BadgeID] = b
		}
		if !ownerEqual(b.UserID, tr.ExpectedOwner) {
			return nil, &storage.StaleOwnershipError{BadgeID: tr.BadgeID}
		}

		b.UserID = cloneStrPtr(tr.NewOwner)
		b.SellPrice = nil
		b.SellingSince = nil
		updated = append(updated, cloneBadge(b))

		logEntries = append(logEntries, &domain.BadgeLogEntry{
			BadgeID:     tr.BadgeID,
			Reason:      tr.Reason,
			RecipientID: tr.NewOwner,
			CreatedAt:   tr.CreatedAt,
			Metadata:    tr.Metadata,
		})
	}

	for id, b := range staged {
		s.data[id] = b
	}
	s.log.appendAll(logEntries)

	return updated, nil
}

// sortBadgesByCreation orders badges by created_at ASC, badge_id ASC.
func sortBadgesByCreation(badges []*domain.Badge) {
	sort.Slice(badges, func(i, j int) bool {
		if badges[i].CreatedAt != badges[j].CreatedAt {
			return badges[i].CreatedAt < badges[j].CreatedAt
		}
		return badges[i].BadgeID < badges[j].BadgeID
	})
}

// Verify interface compliance at compile time.
var _ storage.BadgeStore = (*BadgeStore)(nil)
