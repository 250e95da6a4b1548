package domain

// Currency identifies one of the community currencies managed by the bank.
type Currency string

const (
	CurrencyPokeyen Currency = "pokeyen"
	CurrencyTokens  Currency = "tokens"
)

// String returns the string representation of Currency.
func (c Currency) String() string {
	return string(c)
}

// IsValid checks if the currency is a known value.
func (c Currency) IsValid() bool {
	return c == CurrencyPokeyen || c == CurrencyTokens
}
