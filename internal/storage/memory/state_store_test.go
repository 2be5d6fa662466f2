package memory

import (
	"context"
	"errors"
	"testing"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

func TestStateStore_SaveAndLoadCopies(t *testing.T) {
	store := NewStateStore()
	ctx := context.Background()

	cfg := domain.NewSubscriberConfig("https://rpc", "")
	cfg.Watches["addr"] = &domain.WatchConfig{Alias: "a", SeenMints: []string{"m1"}}
	snap := storage.Snapshot{"chat1": cfg}

	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutating the caller's snapshot must not leak into the store.
	cfg.Watches["addr"].SeenMints = append(cfg.Watches["addr"].SeenMints, "m2")

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := len(loaded["chat1"].Watches["addr"].SeenMints); got != 1 {
		t.Errorf("expected 1 seen mint, got %d", got)
	}
	if store.Saves() != 1 {
		t.Errorf("expected 1 save, got %d", store.Saves())
	}
}

func TestStateStore_SaveNil(t *testing.T) {
	if err := NewStateStore().Save(context.Background(), nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
