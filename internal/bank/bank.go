// Package bank manages one currency's balances: atomic delta
// application, pluggable reserved-amount checkers, and the append-only
// transaction log.
package bank

import (
	"context"
	"errors"
	"fmt"

	"pokeyen-ledger/internal/clock"
	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/observability"
	"pokeyen-ledger/internal/storage"
)

// Bank errors surfaced to command handlers.
var (
	// ErrOwnerNotFound is returned when the referenced owner does not exist.
	ErrOwnerNotFound = errors.New("owner not found")

	// ErrInsufficientFunds is returned when a withdrawal would drop the
	// balance below the sum of reserved amounts.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// ReservedChecker computes the portion of an owner's balance that must
// stay unspent (e.g. funds tied to open sale listings). Checkers are
// read-only and must not mutate state.
type ReservedChecker struct {
	Name string
	Fn   func(ctx context.Context, userID string) (int64, error)
}

// Options for creating a Bank.
type Options struct {
	Currency domain.Currency
	Users    storage.UserStore
	Log      storage.TransactionLogStore

	// Clock defaults to the system clock.
	Clock clock.Clock

	// Metrics is optional.
	Metrics *observability.Metrics
}

// Bank manages balances for a single currency. Construct one instance
// per currency and pass it explicitly to every component that needs
// currency operations; registered checkers live on the instance.
type Bank struct {
	currency domain.Currency
	users    storage.UserStore
	log      storage.TransactionLogStore
	clock    clock.Clock
	metrics  *observability.Metrics

	// checkers are registered at process startup, before concurrent use.
	checkers []ReservedChecker
}

// New creates a Bank for one currency.
func New(opts Options) (*Bank, error) {
	if !opts.Currency.IsValid() {
		return nil, fmt.Errorf("invalid currency %q", opts.Currency)
	}
	if opts.Users == nil || opts.Log == nil {
		return nil, errors.New("bank requires user and transaction log stores")
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	return &Bank{
		currency: opts.Currency,
		users:    opts.Users,
		log:      opts.Log,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
	}, nil
}

// Currency returns the currency this bank manages.
func (b *Bank) Currency() domain.Currency {
	return b.currency
}

// AddReservedChecker registers a checker. Registration is additive and
// process-lifetime; call during startup, before concurrent use.
func (b *Bank) AddReservedChecker(c ReservedChecker) {
	b.checkers = append(b.checkers, c)
}

// Balance returns the owner's stored balance.
func (b *Bank) Balance(ctx context.Context, userID string) (int64, error) {
	u, err := b.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, ErrOwnerNotFound
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return u.Balance(b.currency), nil
}

// Reserved sums all registered checkers for the owner. Exposed for
// diagnostics; Apply consults it before every withdrawal.
func (b *Bank) Reserved(ctx context.Context, userID string) (int64, error) {
	var total int64
	for _, c := range b.checkers {
		amount, err := c.Fn(ctx, userID)
		if err != nil {
			return 0, fmt.Errorf("reserved checker %s: %w", c.Name, err)
		}
		total += amount
	}
	return total, nil
}

// Apply applies a signed change to the owner's balance and writes one
// transaction-log entry in the same atomic unit. A negative change must
// leave at least the reserved amount available; the floor is revalidated
// against the live stored balance at commit time, so concurrent
// withdrawals cannot both succeed past it.
func (b *Bank) Apply(ctx context.Context, userID string, change int64, reason string, metadata map[string]string) (int64, error) {
	var reserved int64
	if change < 0 {
		var err error
		reserved, err = b.Reserved(ctx, userID)
		if err != nil {
			return 0, err
		}
	}

	entry, err := b.users.ApplyBalanceChange(ctx, storage.BalanceChange{
		UserID:       userID,
		Currency:     b.currency,
		Change:       change,
		MinRemaining: reserved,
		CreatedAt:    b.clock.Now().UnixMilli(),
		Reason:       reason,
		Metadata:     metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return 0, ErrOwnerNotFound
		case errors.Is(err, storage.ErrBalanceFloor):
			if b.metrics != nil {
				b.metrics.InsufficientFundsRejections.WithLabelValues(string(b.currency)).Inc()
			}
			return 0, ErrInsufficientFunds
		default:
			return 0, fmt.Errorf("apply balance change: %w", err)
		}
	}

	if b.metrics != nil {
		b.metrics.BalanceChangesApplied.WithLabelValues(string(b.currency)).Inc()
	}
	return entry.NewBalance, nil
}

// Transactions returns the owner's transaction-log entries for this
// currency, oldest first.
func (b *Bank) Transactions(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	entries, err := b.log.GetByUser(ctx, userID, b.currency)
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}
	return entries, nil
}
