package storage

import (
	"context"

	"pokeyen-ledger/internal/domain"
)

// BalanceChange describes one atomic balance mutation. The update and
// its transaction-log entry commit together or not at all.
type BalanceChange struct {
	UserID   string
	Currency domain.Currency
	Change   int64 // signed delta

	// MinRemaining is the floor the post-change balance must not drop
	// below. Enforced only for negative Change, against the live stored
	// value at commit time.
	MinRemaining int64

	CreatedAt int64 // Unix timestamp in milliseconds
	Reason    string
	Metadata  map[string]string
}

// OwnershipTransfer describes one badge's part of an atomic transfer
// batch, including the audit-log entry written alongside it.
type OwnershipTransfer struct {
	BadgeID string

	// ExpectedOwner is the owner the caller last observed. A stored
	// owner that differs aborts the whole batch with StaleOwnershipError.
	ExpectedOwner *string

	NewOwner  *string
	Reason    string
	CreatedAt int64 // Unix timestamp in milliseconds
	Metadata  map[string]string
}

// UserStore provides access to users storage.
type UserStore interface {
	// Create adds a new user. Returns ErrDuplicateKey if user_id exists.
	Create(ctx context.Context, u *domain.User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, userID string) (*domain.User, error)

	// ApplyBalanceChange atomically applies c.Change to the user's
	// balance for c.Currency and appends the transaction-log entry.
	// Returns ErrNotFound if the user does not exist, ErrBalanceFloor if
	// a negative change would drop the live balance below c.MinRemaining.
	// No observer sees the balance update without the log entry.
	ApplyBalanceChange(ctx context.Context, c BalanceChange) (*domain.Transaction, error)

	// SetSelectedBadge sets or clears the user's displayed-badge species.
	// Returns ErrNotFound if the user does not exist.
	SetSelectedBadge(ctx context.Context, userID string, species *string) error

	// ClearSelectedBadgeIf clears the selected badge only when it
	// currently equals species. A non-matching selection is a no-op.
	ClearSelectedBadgeIf(ctx context.Context, userID, species string) error
}

// TransactionLogStore provides read access to the append-only currency
// transaction log. Entries are written by UserStore.ApplyBalanceChange.
type TransactionLogStore interface {
	// GetByUser retrieves all entries for a user and currency, ordered by ID ASC.
	GetByUser(ctx context.Context, userID string, currency domain.Currency) ([]*domain.Transaction, error)

	// GetAfterID retrieves up to limit entries with ID > afterID, ordered
	// by ID ASC. Returns ErrInvalidInput for a non-positive limit. Used
	// by the analytics archiver.
	GetAfterID(ctx context.Context, afterID int64, limit int) ([]*domain.Transaction, error)
}

// BadgeStore provides access to badges storage.
type BadgeStore interface {
	// Insert adds a new badge. Returns ErrDuplicateKey if badge_id exists.
	Insert(ctx context.Context, b *domain.Badge) error

	// GetByID retrieves a badge by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, badgeID string) (*domain.Badge, error)

	// FindAllByOwner retrieves badges for the given owner; a nil owner
	// selects unowned badges. Ordered by created_at ASC, badge_id ASC.
	FindAllByOwner(ctx context.Context, userID *string) ([]*domain.Badge, error)

	// CountByOwnerAndSpecies counts the owner's badges of one species.
	CountByOwnerAndSpecies(ctx context.Context, userID, species string) (int64, error)

	// CountByOwnerGroupedBySpecies tallies the owner's badges per
	// species, ordered by species ASC.
	CountByOwnerGroupedBySpecies(ctx context.Context, userID string) ([]domain.SpeciesCount, error)

	// SetSalePrice sets or clears the sale listing. A non-nil price sets
	// sell_price and selling_since together; a nil price clears both
	// regardless of prior state. Returns the updated badge, ErrNotFound
	// if the badge does not exist.
	SetSalePrice(ctx context.Context, badgeID string, price *int64, listedAt int64) (*domain.Badge, error)

	// FindForSale retrieves listed badges matching the filter. A stored
	// NULL shiny matches a false Shiny filter. Ordered by selling_since
	// ASC, badge_id ASC.
	FindForSale(ctx context.Context, f domain.BadgeFilter) ([]*domain.Badge, error)

	// SumSalePricesByOwner sums sell_price over the owner's listed badges.
	SumSalePricesByOwner(ctx context.Context, userID string) (int64, error)

	// TransferOwnership applies the whole batch atomically: every badge's
	// stored owner must equal its ExpectedOwner or the batch fails with
	// *StaleOwnershipError for the first offending badge, leaving no
	// effects. Sale listings are cleared and one badge-log entry per
	// badge is written in the same unit. Returns updated badges in batch
	// order.
	TransferOwnership(ctx context.Context, batch []OwnershipTransfer) ([]*domain.Badge, error)
}

// BadgeLogStore provides read access to the append-only badge audit log.
// Entries are written by BadgeStore.TransferOwnership.
type BadgeLogStore interface {
	// GetByBadgeID retrieves all entries for a badge, ordered by ID ASC.
	GetByBadgeID(ctx context.Context, badgeID string) ([]*domain.BadgeLogEntry, error)
}

// TransactionArchiveStore mirrors committed transaction-log entries into
// analytics storage. Archive failures never affect ledger operations.
type TransactionArchiveStore interface {
	// InsertBulk adds multiple entries. Re-archiving an ID is tolerated.
	InsertBulk(ctx context.Context, entries []*domain.Transaction) error

	// GetByUser retrieves archived entries for a user, ordered by ID ASC.
	GetByUser(ctx context.Context, userID string) ([]*domain.Transaction, error)

	// MaxID returns the highest archived entry ID, 0 when empty.
	MaxID(ctx context.Context) (int64, error)
}
