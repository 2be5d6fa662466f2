package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

// ActivityJournal implements storage.ActivityJournal on the tracker_activity table.
type ActivityJournal struct {
	conn *Conn
}

// NewActivityJournal creates a new ActivityJournal.
func NewActivityJournal(conn *Conn) *ActivityJournal {
	return &ActivityJournal{conn: conn}
}

// Compile-time interface check.
var _ storage.ActivityJournal = (*ActivityJournal)(nil)

// Append inserts one delivered notification.
func (j *ActivityJournal) Append(ctx context.Context, r *domain.ActivityRecord) error {
	if r == nil || r.SubscriberID == "" {
		return storage.ErrInvalidInput
	}

	batch, err := j.conn.PrepareBatch(ctx, `
		INSERT INTO tracker_activity (
			id, subscriber_id, wallet, signature, slot,
			category, target_mint, native_delta, text, sent_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare activity batch: %w", err)
	}

	sentAt := r.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}
	err = batch.Append(
		r.ID,
		r.SubscriberID,
		r.Wallet,
		r.Signature,
		uint64(r.Slot),
		string(r.Category),
		r.TargetMint,
		r.NativeDelta,
		r.Text,
		sentAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append activity row: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send activity batch: %w", err)
	}
	return nil
}

// ListBySubscriber returns up to limit records for one subscriber, newest first.
func (j *ActivityJournal) ListBySubscriber(ctx context.Context, subscriberID string, limit int) ([]domain.ActivityRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.conn.Query(ctx, `
		SELECT id, subscriber_id, wallet, signature, slot,
			category, target_mint, native_delta, text, sent_at
		FROM tracker_activity
		WHERE subscriber_id = ?
		ORDER BY sent_at DESC, id DESC
		LIMIT ?
	`, subscriberID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var result []domain.ActivityRecord
	for rows.Next() {
		var (
			r        domain.ActivityRecord
			slot     uint64
			category string
		)
		if err := rows.Scan(
			&r.ID,
			&r.SubscriberID,
			&r.Wallet,
			&r.Signature,
			&slot,
			&category,
			&r.TargetMint,
			&r.NativeDelta,
			&r.Text,
			&r.SentAt,
		); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		r.Slot = int64(slot)
		r.Category = domain.Category(category)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity rows: %w", err)
	}
	return result, nil
}
