package memory

import (
	"context"
	"fmt"
	"testing"

	"solana-wallet-tracker/internal/domain"
)

func TestActivityJournal_NewestFirstAndCapacity(t *testing.T) {
	journal := NewActivityJournal(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := journal.Append(ctx, &domain.ActivityRecord{
			ID:           fmt.Sprintf("r%d", i),
			SubscriberID: "chat1",
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	_ = journal.Append(ctx, &domain.ActivityRecord{ID: "other", SubscriberID: "chat2"})

	records, err := journal.ListBySubscriber(ctx, "chat1", 0)
	if err != nil {
		t.Fatalf("ListBySubscriber failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].ID != "r4" || records[2].ID != "r2" {
		t.Errorf("unexpected order: %s .. %s", records[0].ID, records[2].ID)
	}

	limited, _ := journal.ListBySubscriber(ctx, "chat1", 1)
	if len(limited) != 1 || limited[0].ID != "r4" {
		t.Errorf("unexpected limited result: %+v", limited)
	}

	empty, _ := journal.ListBySubscriber(ctx, "nobody", 10)
	if len(empty) != 0 {
		t.Errorf("expected no records, got %d", len(empty))
	}
}
