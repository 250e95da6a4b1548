package clickhouse

import (
	"context"
	"fmt"

	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/storage"
)

// TransactionArchiveStore implements storage.TransactionArchiveStore
// using ClickHouse. The archive is an analytics mirror of the Postgres
// transaction log; ReplacingMergeTree deduplicates re-archived IDs.
type TransactionArchiveStore struct {
	conn *Conn
}

// NewTransactionArchiveStore creates a new TransactionArchiveStore.
func NewTransactionArchiveStore(conn *Conn) *TransactionArchiveStore {
	return &TransactionArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TransactionArchiveStore = (*TransactionArchiveStore)(nil)

// InsertBulk adds multiple entries. Re-archiving an ID is tolerated.
func (s *TransactionArchiveStore) InsertBulk(ctx context.Context, entries []*domain.Transaction) error {
	if len(entries) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO transaction_archive (
			id, user_id, currency, change, new_balance, created_at, reason, metadata
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare archive batch: %w", err)
	}

	for _, t := range entries {
		metadata := t.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		err := batch.Append(
			t.ID,
			t.UserID,
			string(t.Currency),
			t.Change,
			t.NewBalance,
			t.CreatedAt,
			t.Reason,
			metadata,
		)
		if err != nil {
			return fmt.Errorf("append archive entry %d: %w", t.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send archive batch: %w", err)
	}
	return nil
}

// GetByUser retrieves archived entries for a user, ordered by ID ASC.
func (s *TransactionArchiveStore) GetByUser(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	query := `
		SELECT id, user_id, currency, change, new_balance, created_at, reason, metadata
		FROM transaction_archive FINAL
		WHERE user_id = ?
		ORDER BY id ASC
	`

	rows, err := s.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get archived transactions by user: %w", err)
	}
	defer rows.Close()

	var entries []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var currencyStr string
		var metadata map[string]string

		err := rows.Scan(
			&t.ID,
			&t.UserID,
			&currencyStr,
			&t.Change,
			&t.NewBalance,
			&t.CreatedAt,
			&t.Reason,
			&metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}

		t.Currency = domain.Currency(currencyStr)
		t.Metadata = metadata
		entries = append(entries, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive rows: %w", err)
	}

	return entries, nil
}

// MaxID returns the highest archived entry ID, 0 when empty.
func (s *TransactionArchiveStore) MaxID(ctx context.Context) (int64, error) {
	var maxID int64
	err := s.conn.QueryRow(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM transaction_archive`).Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("get max archived id: %w", err)
	}
	return maxID, nil
}
