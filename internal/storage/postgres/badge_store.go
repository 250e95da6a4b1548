package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/storage"
)

// BadgeStore implements storage.BadgeStore using PostgreSQL.
type BadgeStore struct {
	pool *Pool
}

// NewBadgeStore creates a new BadgeStore.
func NewBadgeStore(pool *Pool) *BadgeStore {
	return &BadgeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BadgeStore = (*BadgeStore)(nil)

// badgeColumns is the SELECT list shared by all badge reads. A stored
// NULL shiny (legacy rows) reads back as false.
const badgeColumns = `badge_id, user_id, species, source, created_at, form, COALESCE(shiny, FALSE), sell_price, selling_since`

// Insert adds a new badge. Returns ErrDuplicateKey if badge_id exists.
func (s *BadgeStore) Insert(ctx context.Context, b *domain.Badge) error {
	query := `
		INSERT INTO badges (
			badge_id, user_id, species, source, created_at, form, shiny, sell_price, selling_since
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		b.BadgeID,
		b.UserID,
		b.Species,
		string(b.Source),
		b.CreatedAt,
		b.Form,
		b.Shiny,
		b.SellPrice,
		b.SellingSince,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert badge: %w", err)
	}
	return nil
}

// GetByID retrieves a badge by its ID. Returns ErrNotFound if not exists.
func (s *BadgeStore) GetByID(ctx context.Context, badgeID string) (*domain.Badge, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges WHERE badge_id = $1`

	row := s.pool.QueryRow(ctx, query, badgeID)
	b, err := scanBadge(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get badge by id: %w", err)
	}
	return b, nil
}

// FindAllByOwner retrieves badges for the given owner; a nil owner
// selects unowned badges. Ordered by created_at ASC, badge_id ASC.
func (s *BadgeStore) FindAllByOwner(ctx context.Context, userID *string) ([]*domain.Badge, error) {
	query := `
		SELECT ` + badgeColumns + `
		FROM badges
		WHERE user_id IS NOT DISTINCT FROM $1
		ORDER BY created_at ASC, badge_id ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get badges by owner: %w", err)
	}
	defer rows.Close()

	return scanBadges(rows)
}

// CountByOwnerAndSpecies counts the owner's badges of one species.
func (s *BadgeStore) CountByOwnerAndSpecies(ctx context.Context, userID, species string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM badges WHERE user_id = $1 AND species = $2`,
		userID, species).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count badges by owner and species: %w", err)
	}
	return count, nil
}

// CountByOwnerGroupedBySpecies tallies the owner's badges per species,
// ordered by species ASC.
func (s *BadgeStore) CountByOwnerGroupedBySpecies(ctx context.Context, userID string) ([]domain.SpeciesCount, error) {
	query := `
		SELECT species, COUNT(*)
		FROM badges
		WHERE user_id = $1
		GROUP BY species
		ORDER BY species ASC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("count badges grouped by species: %w", err)
	}
	defer rows.Close()

	var result []domain.SpeciesCount
	for rows.Next() {
		var sc domain.SpeciesCount
		if err := rows.Scan(&sc.Species, &sc.Count); err != nil {
			return nil, fmt.Errorf("scan species count row: %w", err)
		}
		result = append(result, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate species count rows: %w", err)
	}
	return result, nil
}

// SetSalePrice sets or clears the sale listing. Both sale fields change
// together; a nil price clears both regardless of prior state.
func (s *BadgeStore) SetSalePrice(ctx context.Context, badgeID string, price *int64, listedAt int64) (*domain.Badge, error) {
	var since *int64
	if price != nil {
		since = &listedAt
	}

	query := `
		UPDATE badges
		SET sell_price = $2, selling_since = $3
		WHERE badge_id = $1
		RETURNING ` + badgeColumns

	row := s.pool.QueryRow(ctx, query, badgeID, price, since)
	b, err := scanBadge(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("set sale price: %w", err)
	}
	return b, nil
}

// FindForSale retrieves listed badges matching the filter. Ordered by
// selling_since ASC, badge_id ASC.
func (s *BadgeStore) FindForSale(ctx context.Context, f domain.BadgeFilter) ([]*domain.Badge, error) {
	conds := []string{"sell_price IS NOT NULL", "selling_since IS NOT NULL"}
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.UserID != nil {
		conds = append(conds, "user_id = "+arg(*f.UserID))
	}
	if f.Species != nil {
		conds = append(conds, "species = "+arg(*f.Species))
	}
	if f.Source != nil {
		conds = append(conds, "source = "+arg(string(*f.Source)))
	}
	if f.Form != nil {
		conds = append(conds, "form = "+arg(*f.Form))
	}
	if f.Shiny != nil {
		// Legacy rows carry NULL shiny and must match a false filter.
		conds = append(conds, "COALESCE(shiny, FALSE) = "+arg(*f.Shiny))
	}

	query := `
		SELECT ` + badgeColumns + `
		FROM badges
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY selling_since ASC, badge_id ASC
	`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find badges for sale: %w", err)
	}
	defer rows.Close()

	return scanBadges(rows)
}

// SumSalePricesByOwner sums sell_price over the owner's listed badges.
func (s *BadgeStore) SumSalePricesByOwner(ctx context.Context, userID string) (int64, error) {
	var sum int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(sell_price), 0) FROM badges WHERE user_id = $1 AND sell_price IS NOT NULL`,
		userID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum sale prices by owner: %w", err)
	}
	return sum, nil
}

// TransferOwnership applies the whole batch atomically. Each badge's
// conditional UPDATE re-checks the stored owner inside the transaction:
// a concurrent transfer that commits first makes the condition fail, so
// the loser observes the conflict instead of overwriting it.
func (s *BadgeStore) TransferOwnership(ctx context.Context, batch []storage.OwnershipTransfer) ([]*domain.Badge, error) {
	if len(batch) == 0 {
		return nil, storage.ErrInvalidInput
	}

	updated := make([]*domain.Badge, 0, len(batch))
	err := s.pool.inTx(ctx, func(tx pgx.Tx) error {
		for _, tr := range batch {
			row := tx.QueryRow(ctx, `
				UPDATE badges
				SET user_id = $2, sell_price = NULL, selling_since = NULL
				WHERE badge_id = $1 AND user_id IS NOT DISTINCT FROM $3
				RETURNING `+badgeColumns,
				tr.BadgeID, tr.NewOwner, tr.ExpectedOwner)

			b, err := scanBadge(row)
			if err != nil {
				if isNotFoundError(err) {
					return &storage.StaleOwnershipError{BadgeID: tr.BadgeID}
				}
				return fmt.Errorf("transfer badge %s: %w", tr.BadgeID, err)
			}
			updated = append(updated, b)

			_, err = tx.Exec(ctx, `
				INSERT INTO badge_log (badge_id, reason, recipient_id, created_at, metadata)
				VALUES ($1, $2, $3, $4, $5)
			`, tr.BadgeID, tr.Reason, tr.NewOwner, tr.CreatedAt, metadataOrEmpty(tr.Metadata))
			if err != nil {
				return fmt.Errorf("insert badge log for %s: %w", tr.BadgeID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// scanBadge scans a single row into a Badge.
func scanBadge(row pgx.Row) (*domain.Badge, error) {
	var b domain.Badge
	var sourceStr string

	err := row.Scan(
		&b.BadgeID,
		&b.UserID,
		&b.Species,
		&sourceStr,
		&b.CreatedAt,
		&b.Form,
		&b.Shiny,
		&b.SellPrice,
		&b.SellingSince,
	)
	if err != nil {
		return nil, err
	}

	b.Source = domain.BadgeSource(sourceStr)
	return &b, nil
}

// scanBadges scans multiple rows into a slice of Badge.
func scanBadges(rows pgx.Rows) ([]*domain.Badge, error) {
	var badges []*domain.Badge

	for rows.Next() {
		var b domain.Badge
		var sourceStr string

		err := rows.Scan(
			&b.BadgeID,
			&b.UserID,
			&b.Species,
			&sourceStr,
			&b.CreatedAt,
			&b.Form,
			&b.Shiny,
			&b.SellPrice,
			&b.SellingSince,
		)
		if err != nil {
			return nil, fmt.Errorf("scan badge row: %w", err)
		}

		b.Source = domain.BadgeSource(sourceStr)
		badges = append(badges, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate badge rows: %w", err)
	}

	return badges, nil
}
