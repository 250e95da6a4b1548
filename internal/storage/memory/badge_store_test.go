package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/storage"
)

func ptr[T any](v T) *T {
	return &v
}

func newTestBadgeStore() (*BadgeStore, *BadgeLogStore) {
	log := NewBadgeLogStore()
	return NewBadgeStore(log), log
}

func TestBadgeStore_InsertAndGet(t *testing.T) {
	store, _ := newTestBadgeStore()
	ctx := context.Background()

	b := &domain.Badge{
		BadgeID:   "b1",
		UserID:    ptr("u1"),
		Species:   "pidgey",
		Source:    domain.SourceRunCaught,
		CreatedAt: 1704067200000,
	}
	if err := store.Insert(ctx, b); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "b1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Species != "pidgey" || got.UserID == nil || *got.UserID != "u1" {
		t.Errorf("Badge mismatch: %+v", got)
	}
}

func TestBadgeStore_FindAllByOwner(t *testing.T) {
	store, _ := newTestBadgeStore()
	ctx := context.Background()

	badges := []*domain.Badge{
		{BadgeID: "b2", UserID: ptr("u1"), Species: "abra", Source: domain.SourceRunCaught, CreatedAt: 2000},
		{BadgeID: "b1", UserID: ptr("u1"), Species: "pidgey", Source: domain.SourceRunCaught, CreatedAt: 1000},
		{BadgeID: "b3", UserID: ptr("u2"), Species: "abra", Source: domain.SourcePinball, CreatedAt: 3000},
		{BadgeID: "b4", UserID: nil, Species: "mew", Source: domain.SourceManualCreation, CreatedAt: 4000},
	}
	for _, b := range badges {
		if err := store.Insert(ctx, b); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	result, err := store.FindAllByOwner(ctx, ptr("u1"))
	if err != nil {
		t.Fatalf("FindAllByOwner failed: %v", err)
	}
	if len(result) != 2 || result[0].BadgeID != "b1" || result[1].BadgeID != "b2" {
		t.Errorf("Expected [b1 b2], got %v", badgeIDs(result))
	}

	// nil owner selects unowned badges
	unowned, err := store.FindAllByOwner(ctx, nil)
	if err != nil {
		t.Fatalf("FindAllByOwner(nil) failed: %v", err)
	}
	if len(unowned) != 1 || unowned[0].BadgeID != "b4" {
		t.Errorf("Expected [b4], got %v", badgeIDs(unowned))
	}
}

func TestBadgeStore_Counts(t *testing.T) {
	store, _ := newTestBadgeStore()
	ctx := context.Background()

	for _, b := range []*domain.Badge{
		{BadgeID: "b1", UserID: ptr("u1"), Species: "pidgey", Source: domain.SourceRunCaught, CreatedAt: 1},
		{BadgeID: "b2", UserID: ptr("u1"), Species: "pidgey", Source: domain.SourceRunCaught, CreatedAt: 2},
		{BadgeID: "b3", UserID: ptr("u1"), Species: "abra", Source: domain.SourceRunCaught, CreatedAt: 3},
	} {
		if err := store.Insert(ctx, b); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	n, err := store.CountByOwnerAndSpecies(ctx, "u1", "pidgey")
	if err != nil {
		t.Fatalf("CountByOwnerAndSpecies failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 pidgey, got %d", n)
	}

	grouped, err := store.CountByOwnerGroupedBySpecies(ctx, "u1")
	if err != nil {
		t.Fatalf("CountByOwnerGroupedBySpecies failed: %v", err)
	}
	want := []domain.SpeciesCount{{Species: "abra", Count: 1}, {Species: "pidgey", Count: 2}}
	if len(grouped) != len(want) {
		t.Fatalf("Expected %d species, got %d", len(want), len(grouped))
	}
	for i := range want {
		if grouped[i] != want[i] {
			t.Errorf("Grouped count %d mismatch: got %+v, want %+v", i, grouped[i], want[i])
		}
	}
}

func TestBadgeStore_SetSalePrice(t *testing.T) {
	store, _ := newTestBadgeStore()
	ctx := context.Background()

	b := &domain.Badge{BadgeID: "b1", UserID: ptr("u1"), Species: "pidgey", Source: domain.SourceRunCaught, CreatedAt: 1}
	if err := store.Insert(ctx, b); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	listed, err := store.SetSalePrice(ctx, "b1", ptr(int64(300)), 5000)
	if err != nil {
		t.Fatalf("SetSalePrice failed: %v", err)
	}
	if listed.SellPrice == nil || *listed.SellPrice != 300 {
		t.Errorf("SellPrice not set: %+v", listed)
	}
	if listed.SellingSince == nil || *listed.SellingSince != 5000 {
		t.Errorf("SellingSince not set: %+v", listed)
	}

	// Clearing removes both fields regardless of prior state.
	cleared, err := store.SetSalePrice(ctx, "b1", nil, 9999)
	if err != nil {
		t.Fatalf("SetSalePrice(nil) failed: %v", err)
	}
	if cleared.SellPrice != nil || cleared.SellingSince != nil {
		t.Errorf("Sale fields not cleared together: %+v", cleared)
	}
}

func TestBadgeStore_FindForSale(t *testing.T) {
	store, _ := newTestBadgeStore()
	ctx := context.Background()

	for _, b := range []*domain.Badge{
		{BadgeID: "b1", UserID: ptr("u1"), Species: "pidgey", Source: domain.SourceRunCaught, CreatedAt: 1, SellPrice: ptr(int64(100)), SellingSince: ptr(int64(10))},
		{BadgeID: "b2", UserID: ptr("u1"), Species: "pidgey", Source: domain.SourcePinball, CreatedAt: 2, Shiny: true, SellPrice: ptr(int64(900)), SellingSince: ptr(int64(20))},
		{BadgeID: "b3", UserID: ptr("u2"), Species: "abra", Source: domain.SourceRunCaught, CreatedAt: 3},
	} {
		if err := store.Insert(ctx, b); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	// No constraints: every listed badge, listing order.
	all, err := store.FindForSale(ctx, domain.BadgeFilter{})
	if err != nil {
		t.Fatalf("FindForSale failed: %v", err)
	}
	if len(all) != 2 || all[0].BadgeID != "b1" || all[1].BadgeID != "b2" {
		t.Errorf("Expected [b1 b2], got %v", badgeIDs(all))
	}

	// Shiny filter narrows to the shiny listing.
	shiny, err := store.FindForSale(ctx, domain.BadgeFilter{Shiny: ptr(true)})
	if err != nil {
		t.Fatalf("FindForSale(shiny) failed: %v", err)
	}
	if len(shiny) != 1 || shiny[0].BadgeID != "b2" {
		t.Errorf("Expected [b2], got %v", badgeIDs(shiny))
	}

	// Source filter.
	pinball, err := store.FindForSale(ctx, domain.BadgeFilter{Source: ptr(domain.SourcePinball)})
	if err != nil {
		t.Fatalf("FindForSale(source) failed: %v", err)
	}
	if len(pinball) != 1 || pinball[0].BadgeID != "b2" {
		t.Errorf("Expected [b2], got %v", badgeIDs(pinball))
	}
}

func TestBadgeStore_SumSalePricesByOwner(t *testing.T) {
	store, _ := newTestBadgeStore()
	ctx := context.Background()

	for _, b := range []*domain.Badge{
		{BadgeID: "b1", UserID: ptr("u1"), Species: "pidgey", Source: domain.SourceRunCaught, CreatedAt: 1, SellPrice: ptr(int64(100)), SellingSince: ptr(int64(10))},
		{BadgeID: "b2", UserID: ptr("u1"), Species: "abra", Source: domain.SourceRunCaught, CreatedAt: 2, SellPrice: ptr(int64(250)), SellingSince: ptr(int64(20))},
		{BadgeID: "b3", UserID: ptr("u1"), Species: "mew", Source: domain.SourceRunCaught, CreatedAt: 3},
	} {
		if err := store.Insert(ctx, b); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	sum, err := store.SumSalePricesByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("SumSalePricesByOwner failed: %v", err)
	}
	if sum != 350 {
		t.Errorf("Expected 350, got %d", sum)
	}
}

func TestBadgeStore_TransferOwnership(t *testing.T) {
	store, log := newTestBadgeStore()
	ctx := context.Background()

	for _, b := range []*domain.Badge{
		{BadgeID: "b1", UserID: ptr("u1"), Species: "pidgey", Source: domain.SourceRunCaught, CreatedAt: 1, SellPrice: ptr(int64(100)), SellingSince: ptr(int64(10))},
		{BadgeID: "b2", UserID: ptr("u1"), Species: "abra", Source: domain.SourceRunCaught, CreatedAt: 2},
	} {
		if err := store.Insert(ctx, b); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	batch := []storage.OwnershipTransfer{
		{BadgeID: "b1", ExpectedOwner: ptr("u1"), NewOwner: ptr("u2"), Reason: "gift", CreatedAt: 100},
		{BadgeID: "b2", ExpectedOwner: ptr("u1"), NewOwner: ptr("u2"), Reason: "gift", CreatedAt: 100},
	}
	updated, err := store.TransferOwnership(ctx, batch)
	if err != nil {
		t.Fatalf("TransferOwnership failed: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("Expected 2 updated badges, got %d", len(updated))
	}
	if *updated[0].UserID != "u2" || updated[0].SellPrice != nil || updated[0].SellingSince != nil {
		t.Errorf("b1 should be owned by u2 with listing cleared: %+v", updated[0])
	}

	entries, err := log.GetByBadgeID(ctx, "b1")
	if err != nil {
		t.Fatalf("GetByBadgeID failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Reason != "gift" || *entries[0].RecipientID != "u2" {
		t.Errorf("Audit entry mismatch: %+v", entries)
	}
}

func TestBadgeStore_TransferOwnership_StaleAbortsBatch(t *testing.T) {
	store, log := newTestBadgeStore()
	ctx := context.Background()

	for _, b := range []*domain.Badge{
		{BadgeID: "b1", UserID: ptr("u1"), Species: "pidgey", Source: domain.SourceRunCaught, CreatedAt: 1},
		{BadgeID: "b2", UserID: ptr("u3"), Species: "abra", Source: domain.SourceRunCaught, CreatedAt: 2},
	} {
		if err := store.Insert(ctx, b); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	// b2's stored owner is u3, not the expected u1: whole batch aborts.
	_, err := store.TransferOwnership(ctx, []storage.OwnershipTransfer{
		{BadgeID: "b1", ExpectedOwner: ptr("u1"), NewOwner: ptr("u2"), Reason: "gift", CreatedAt: 100},
		{BadgeID: "b2", ExpectedOwner: ptr("u1"), NewOwner: ptr("u2"), Reason: "gift", CreatedAt: 100},
	})
	var stale *storage.StaleOwnershipError
	if !errors.As(err, &stale) {
		t.Fatalf("Expected StaleOwnershipError, got %v", err)
	}
	if stale.BadgeID != "b2" {
		t.Errorf("Expected offending badge b2, got %s", stale.BadgeID)
	}

	// No partial effects.
	b1, _ := store.GetByID(ctx, "b1")
	if *b1.UserID != "u1" {
		t.Errorf("b1 owner changed despite abort: %v", *b1.UserID)
	}
	entries, _ := log.GetByBadgeID(ctx, "b1")
	if len(entries) != 0 {
		t.Errorf("Audit entries written despite abort: %d", len(entries))
	}
}

func TestBadgeStore_TransferOwnership_DuplicateBadgeInBatch(t *testing.T) {
	store, log := newTestBadgeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.Badge{
		BadgeID: "b1", UserID: ptr("u1"), Species: "pidgey",
		Source: domain.SourceRunCaught, CreatedAt: 1,
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// The first occurrence hands b1 to u2, so the second occurrence sees
	// a stored owner that no longer matches and aborts the whole batch.
	_, err := store.TransferOwnership(ctx, []storage.OwnershipTransfer{
		{BadgeID: "b1", ExpectedOwner: ptr("u1"), NewOwner: ptr("u2"), Reason: "gift", CreatedAt: 100},
		{BadgeID: "b1", ExpectedOwner: ptr("u1"), NewOwner: ptr("u2"), Reason: "gift", CreatedAt: 100},
	})
	var stale *storage.StaleOwnershipError
	if !errors.As(err, &stale) {
		t.Fatalf("Expected StaleOwnershipError, got %v", err)
	}
	if stale.BadgeID != "b1" {
		t.Errorf("Expected offending badge b1, got %s", stale.BadgeID)
	}

	b1, _ := store.GetByID(ctx, "b1")
	if *b1.UserID != "u1" {
		t.Errorf("b1 owner changed despite abort: %v", *b1.UserID)
	}
	entries, _ := log.GetByBadgeID(ctx, "b1")
	if len(entries) != 0 {
		t.Errorf("Audit entries written despite abort: %d", len(entries))
	}
}

func TestBadgeStore_TransferOwnership_ConcurrentSameBadge(t *testing.T) {
	store, _ := newTestBadgeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.Badge{
		BadgeID: "b1", UserID: ptr("u1"), Species: "pidgey",
		Source: domain.SourceRunCaught, CreatedAt: 1,
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, recipient := range []string{"r1", "r2"} {
		wg.Add(1)
		go func(i int, recipient string) {
			defer wg.Done()
			_, results[i] = store.TransferOwnership(ctx, []storage.OwnershipTransfer{
				{BadgeID: "b1", ExpectedOwner: ptr("u1"), NewOwner: ptr(recipient), Reason: "race", CreatedAt: 100},
			})
		}(i, recipient)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range results {
		var stale *storage.StaleOwnershipError
		switch {
		case err == nil:
			successes++
		case errors.As(err, &stale) && stale.BadgeID == "b1":
			conflicts++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Errorf("Expected exactly one success and one conflict, got %d/%d", successes, conflicts)
	}
}

func badgeIDs(badges []*domain.Badge) []string {
	ids := make([]string, len(badges))
	for i, b := range badges {
		ids[i] = b.BadgeID
	}
	return ids
}
