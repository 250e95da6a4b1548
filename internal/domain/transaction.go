package domain

// Transaction is one append-only currency log entry, written in the same
// atomic unit as the balance change it records.
// Corresponds to the transactions table in PostgreSQL.
type Transaction struct {
	ID         int64             // PRIMARY KEY, assigned by storage
	UserID     string            // owner whose balance changed
	Currency   Currency          // which balance changed
	Change     int64             // signed delta
	NewBalance int64             // balance after the change
	CreatedAt  int64             // Unix timestamp in milliseconds
	Reason     string            // free-form reason
	Metadata   map[string]string // opaque caller-supplied context
}
