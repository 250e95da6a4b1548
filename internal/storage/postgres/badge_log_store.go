package postgres

import (
	"context"
	"fmt"

	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/storage"
)

// BadgeLogStore implements storage.BadgeLogStore using PostgreSQL.
// Entries are written by BadgeStore.TransferOwnership.
type BadgeLogStore struct {
	pool *Pool
}

// NewBadgeLogStore creates a new BadgeLogStore.
func NewBadgeLogStore(pool *Pool) *BadgeLogStore {
	return &BadgeLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BadgeLogStore = (*BadgeLogStore)(nil)

// GetByBadgeID retrieves all entries for a badge, ordered by ID ASC.
func (s *BadgeLogStore) GetByBadgeID(ctx context.Context, badgeID string) ([]*domain.BadgeLogEntry, error) {
	query := `
		SELECT id, badge_id, reason, recipient_id, created_at, metadata
		FROM badge_log
		WHERE badge_id = $1
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query, badgeID)
	if err != nil {
		return nil, fmt.Errorf("get badge log by badge id: %w", err)
	}
	defer rows.Close()

	var entries []*domain.BadgeLogEntry
	for rows.Next() {
		var e domain.BadgeLogEntry
		err := rows.Scan(
			&e.ID,
			&e.BadgeID,
			&e.Reason,
			&e.RecipientID,
			&e.CreatedAt,
			&e.Metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("scan badge log row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate badge log rows: %w", err)
	}

	return entries, nil
}
