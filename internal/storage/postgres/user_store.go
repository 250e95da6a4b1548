package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UserStore = (*UserStore)(nil)

// balanceColumn maps a currency to its users column. Currencies are a
// closed enum, so interpolating the column name is safe.
func balanceColumn(c domain.Currency) string {
	if c == domain.CurrencyTokens {
		return "token_balance"
	}
	return "pokeyen_balance"
}

// Create adds a new user. Returns ErrDuplicateKey if user_id exists.
func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (
			user_id, name, pokeyen_balance, token_balance, selected_badge, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		u.UserID,
		u.Name,
		u.PokeyenBalance,
		u.TokenBalance,
		u.SelectedBadge,
		u.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID. Returns ErrNotFound if not exists.
func (s *UserStore) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, name, pokeyen_balance, token_balance, selected_badge, created_at
		FROM users
		WHERE user_id = $1
	`

	row := s.pool.QueryRow(ctx, query, userID)
	u, err := scanUser(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// ApplyBalanceChange atomically applies the change and appends the
// transaction-log entry. The floor condition is part of the UPDATE
// itself, so it is revalidated against the live row at commit time and
// two concurrent withdrawals cannot both pass it.
func (s *UserStore) ApplyBalanceChange(ctx context.Context, c storage.BalanceChange) (*domain.Transaction, error) {
	if c.UserID == "" || !c.Currency.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	col := balanceColumn(c.Currency)
	update := fmt.Sprintf(`
		UPDATE users
		SET %s = %s + $2
		WHERE user_id = $1 AND ($2 >= 0 OR %s + $2 >= $3)
		RETURNING %s
	`, col, col, col, col)

	var entry *domain.Transaction
	err := s.pool.inTx(ctx, func(tx pgx.Tx) error {
		var newBalance int64
		err := tx.QueryRow(ctx, update, c.UserID, c.Change, c.MinRemaining).Scan(&newBalance)
		if err != nil {
			if !isNotFoundError(err) {
				return fmt.Errorf("update balance: %w", err)
			}
			// Distinguish a missing user from a breached floor.
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`,
				c.UserID).Scan(&exists); err != nil {
				return fmt.Errorf("check user exists: %w", err)
			}
			if !exists {
				return storage.ErrNotFound
			}
			return storage.ErrBalanceFloor
		}

		var id int64
		err = tx.QueryRow(ctx, `
			INSERT INTO transactions (
				user_id, currency, change, new_balance, created_at, reason, metadata
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, c.UserID, string(c.Currency), c.Change, newBalance, c.CreatedAt, c.Reason, metadataOrEmpty(c.Metadata)).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		entry = &domain.Transaction{
			ID:         id,
			UserID:     c.UserID,
			Currency:   c.Currency,
			Change:     c.Change,
			NewBalance: newBalance,
			CreatedAt:  c.CreatedAt,
			Reason:     c.Reason,
			Metadata:   c.Metadata,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// SetSelectedBadge sets or clears the user's displayed-badge species.
func (s *UserStore) SetSelectedBadge(ctx context.Context, userID string, species *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET selected_badge = $2 WHERE user_id = $1`,
		userID, species)
	if err != nil {
		return fmt.Errorf("set selected badge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ClearSelectedBadgeIf clears the selected badge only when it currently
// equals species. Unknown users and non-matching selections are no-ops.
func (s *UserStore) ClearSelectedBadgeIf(ctx context.Context, userID, species string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET selected_badge = NULL WHERE user_id = $1 AND selected_badge = $2`,
		userID, species)
	if err != nil {
		return fmt.Errorf("clear selected badge: %w", err)
	}
	return nil
}

// metadataOrEmpty keeps jsonb columns non-null for absent metadata.
func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// scanUser scans a single row into a User.
func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.UserID,
		&u.Name,
		&u.PokeyenBalance,
		&u.TokenBalance,
		&u.SelectedBadge,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
