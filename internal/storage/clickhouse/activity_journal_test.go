package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

func TestActivityJournal_AppendAndList(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	journal := NewActivityJournal(conn)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		err := journal.Append(ctx, &domain.ActivityRecord{
			ID:           id,
			SubscriberID: "chat1",
			Wallet:       "Wallet1",
			Signature:    "sig-" + id,
			Slot:         int64(100 + i),
			Category:     domain.CategorySwap,
			TargetMint:   "MintA",
			NativeDelta:  -0.25,
			Text:         "text " + id,
			SentAt:       base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	require.NoError(t, journal.Append(ctx, &domain.ActivityRecord{
		ID:           "other",
		SubscriberID: "chat2",
		Category:     domain.CategoryNewPool,
		SentAt:       base,
	}))

	records, err := journal.ListBySubscriber(ctx, "chat1", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "c", records[0].ID)
	assert.Equal(t, "b", records[1].ID)
	assert.Equal(t, int64(102), records[0].Slot)
	assert.Equal(t, domain.CategorySwap, records[0].Category)
	assert.InDelta(t, -0.25, records[0].NativeDelta, 1e-9)
	assert.True(t, records[0].SentAt.Equal(base.Add(2*time.Minute)))
}

func TestActivityJournal_AppendInvalid(t *testing.T) {
	journal := NewActivityJournal(nil)
	err := journal.Append(context.Background(), &domain.ActivityRecord{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
