package memory

import (
	"context"
	"testing"

	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/storage"
)

func TestTransactionArchiveStore_WatermarkCycle(t *testing.T) {
	log := NewTransactionLogStore()
	users := NewUserStore(log)
	archive := NewTransactionArchiveStore()
	ctx := context.Background()

	if err := users.Create(ctx, &domain.User{UserID: "u1", PokeyenBalance: 100}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		_, err := users.ApplyBalanceChange(ctx, storage.BalanceChange{
			UserID:   "u1",
			Currency: domain.CurrencyPokeyen,
			Change:   10,
			Reason:   "drip",
		})
		if err != nil {
			t.Fatalf("ApplyBalanceChange failed: %v", err)
		}
	}

	maxID, err := archive.MaxID(ctx)
	if err != nil {
		t.Fatalf("MaxID failed: %v", err)
	}
	if maxID != 0 {
		t.Errorf("Expected empty archive watermark 0, got %d", maxID)
	}

	// First poll copies a partial batch.
	batch, err := log.GetAfterID(ctx, maxID, 3)
	if err != nil {
		t.Fatalf("GetAfterID failed: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("Expected batch of 3, got %d", len(batch))
	}
	if err := archive.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	maxID, err = archive.MaxID(ctx)
	if err != nil {
		t.Fatalf("MaxID failed: %v", err)
	}
	if maxID != 3 {
		t.Errorf("Expected watermark 3, got %d", maxID)
	}

	// Second poll resumes from the watermark and drains the rest.
	batch, err = log.GetAfterID(ctx, maxID, 100)
	if err != nil {
		t.Fatalf("GetAfterID failed: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("Expected remaining 2 entries, got %d", len(batch))
	}
	if batch[0].ID != 4 || batch[1].ID != 5 {
		t.Errorf("Expected IDs 4,5 after watermark, got %d,%d", batch[0].ID, batch[1].ID)
	}
	if err := archive.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	archived, err := archive.GetByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(archived) != 5 {
		t.Fatalf("Expected 5 archived entries, got %d", len(archived))
	}
	for i, entry := range archived {
		if entry.ID != int64(i+1) {
			t.Errorf("Entry %d: expected ID %d, got %d", i, i+1, entry.ID)
		}
	}

	// Re-archiving the last batch is tolerated.
	if err := archive.InsertBulk(ctx, batch); err != nil {
		t.Fatalf("Re-archive failed: %v", err)
	}
	archived, err = archive.GetByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(archived) != 5 {
		t.Errorf("Expected 5 entries after re-archive, got %d", len(archived))
	}
}
