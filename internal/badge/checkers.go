package badge

import (
	"context"

	"pokeyen-ledger/internal/bank"
	"pokeyen-ledger/internal/events"
	"pokeyen-ledger/internal/storage"
)

// ListingReservedChecker returns a reserved-amount checker that holds
// back the sum of the owner's open sale listings. Registered against the
// token bank at startup so listed value cannot be spent out from under a
// sale.
func ListingReservedChecker(badges storage.BadgeStore) bank.ReservedChecker {
	return bank.ReservedChecker{
		Name: "open-sale-listings",
		Fn: func(ctx context.Context, userID string) (int64, error) {
			return badges.SumSalePricesByOwner(ctx, userID)
		},
	}
}

// NewSelectionResetHandler returns a species-lost handler that clears a
// user's displayed-badge selection when it names the lost species. The
// selection is a weak reference; this is where it gets reconciled.
func NewSelectionResetHandler(users storage.UserStore) events.SpeciesLostHandler {
	return func(ctx context.Context, ev events.SpeciesLost) error {
		return users.ClearSelectedBadgeIf(ctx, ev.UserID, ev.Species)
	}
}
