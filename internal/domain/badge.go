package domain

// BadgeSource records how a badge came into existence.
type BadgeSource string

const (
	SourceManualCreation        BadgeSource = "MANUAL_CREATION"
	SourceRunCaught             BadgeSource = "RUN_CAUGHT"
	SourcePinball               BadgeSource = "PINBALL"
	SourceTransmutation         BadgeSource = "TRANSMUTATION"
	SourceBreakingChangeRelease BadgeSource = "BREAKING_CHANGE_RELEASE"
)

// String returns the string representation of BadgeSource.
func (s BadgeSource) String() string {
	return string(s)
}

// IsValid checks if the source is a known value.
func (s BadgeSource) IsValid() bool {
	switch s {
	case SourceManualCreation, SourceRunCaught, SourcePinball,
		SourceTransmutation, SourceBreakingChangeRelease:
		return true
	}
	return false
}

// Badge represents a collectible species badge.
// Corresponds to the badges table in PostgreSQL.
//
// SellPrice and SellingSince are set and cleared together: a badge is
// listed for sale iff both are non-nil. Rows persisted before the
// shiny/form columns existed read back as Shiny=false, Form=nil.
type Badge struct {
	BadgeID      string      // PRIMARY KEY, content-derived hash (see idhash)
	UserID       *string     // owner (nullable: freshly minted badges may be unassigned)
	Species      string      // species identifier
	Source       BadgeSource // acquisition source
	CreatedAt    int64       // Unix timestamp in milliseconds
	Form         *string     // optional form tag
	Shiny        bool        // shiny marker
	SellPrice    *int64      // token price while listed, nil otherwise
	SellingSince *int64      // listing timestamp (ms), nil unless listed
}

// ForSale reports whether the badge currently carries a sale listing.
func (b *Badge) ForSale() bool {
	return b.SellPrice != nil && b.SellingSince != nil
}

// SpeciesCount is one entry of a per-species badge tally.
type SpeciesCount struct {
	Species string
	Count   int64
}

// BadgeFilter narrows FindForSale results. Nil fields are unconstrained.
// The Shiny filter treats a stored NULL shiny as false, so legacy badges
// match a false (or absent) filter.
type BadgeFilter struct {
	UserID  *string
	Species *string
	Source  *BadgeSource
	Form    *string
	Shiny   *bool
}
