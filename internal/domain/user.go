package domain

// User represents an owner entity that holds currency balances and badges.
// Corresponds to the users table in PostgreSQL.
type User struct {
	UserID         string  // PRIMARY KEY, opaque platform identifier
	Name           string  // display name at last interaction
	PokeyenBalance int64   // pokeyen balance
	TokenBalance   int64   // token balance
	SelectedBadge  *string // species key of the displayed badge (weak reference, nullable)
	CreatedAt      int64   // Unix timestamp in milliseconds
}

// Balance returns the stored balance for the given currency.
func (u *User) Balance(c Currency) int64 {
	if c == CurrencyTokens {
		return u.TokenBalance
	}
	return u.PokeyenBalance
}
