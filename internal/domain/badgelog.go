package domain

// BadgeLogEntry is one append-only badge audit record, written exactly
// once per badge per transfer, in the same atomic unit as the ownership
// change it documents.
// Corresponds to the badge_log table in PostgreSQL.
type BadgeLogEntry struct {
	ID          int64             // PRIMARY KEY, assigned by storage
	BadgeID     string            // badge that changed hands
	Reason      string            // e.g. "gift", "sale", "transmutation"
	RecipientID *string           // new owner (nullable for unassignment)
	CreatedAt   int64             // Unix timestamp in milliseconds
	Metadata    map[string]string // opaque caller-supplied context
}
