package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/storage"
)

// TransactionLogStore implements storage.TransactionLogStore using
// PostgreSQL. Entries are written by UserStore.ApplyBalanceChange.
type TransactionLogStore struct {
	pool *Pool
}

// NewTransactionLogStore creates a new TransactionLogStore.
func NewTransactionLogStore(pool *Pool) *TransactionLogStore {
	return &TransactionLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionLogStore = (*TransactionLogStore)(nil)

// GetByUser retrieves all entries for a user and currency, ordered by ID ASC.
func (s *TransactionLogStore) GetByUser(ctx context.Context, userID string, currency domain.Currency) ([]*domain.Transaction, error) {
	query := `
		SELECT id, user_id, currency, change, new_balance, created_at, reason, metadata
		FROM transactions
		WHERE user_id = $1 AND currency = $2
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID, string(currency))
	if err != nil {
		return nil, fmt.Errorf("get transactions by user: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetAfterID retrieves up to limit entries with ID > afterID, ordered by ID ASC.
func (s *TransactionLogStore) GetAfterID(ctx context.Context, afterID int64, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT id, user_id, currency, change, new_balance, created_at, reason, metadata
		FROM transactions
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("get transactions after id: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// scanTransactions scans multiple rows into a slice of Transaction.
func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var entries []*domain.Transaction

	for rows.Next() {
		var t domain.Transaction
		var currencyStr string

		err := rows.Scan(
			&t.ID,
			&t.UserID,
			&currencyStr,
			&t.Change,
			&t.NewBalance,
			&t.CreatedAt,
			&t.Reason,
			&t.Metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}

		t.Currency = domain.Currency(currencyStr)
		entries = append(entries, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return entries, nil
}
