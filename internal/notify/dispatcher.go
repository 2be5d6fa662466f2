package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"solana-wallet-tracker/internal/classifier"
	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/observability"
	"solana-wallet-tracker/internal/storage"
)

// Delivery is a rendered decision addressed to one subscriber.
type Delivery struct {
	SubscriberID string
	Owner        string
	Silent       bool
	Decision     *classifier.Decision
	Text         string
	ImageURL     string
}

// SeenMarker records that a mint was notified as new for a wallet.
// subscription.Registry implements it.
type SeenMarker interface {
	MarkSeen(ctx context.Context, id, owner, mint string) bool
}

// DispatcherOptions contains configuration for creating a Dispatcher.
type DispatcherOptions struct {
	Sender  Sender
	Seen    SeenMarker
	Journal storage.ActivityJournal // optional
	Metrics *observability.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Dispatcher sends deliveries and performs the bookkeeping that follows a
// successful send. Failed sends are dropped.
type Dispatcher struct {
	sender  Sender
	seen    SeenMarker
	journal storage.ActivityJournal
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		sender:  opts.Sender,
		seen:    opts.Seen,
		journal: opts.Journal,
		metrics: opts.Metrics,
		logger:  logger.With("component", "dispatcher"),
		now:     now,
	}
}

// Dispatch sends d. On success a new-for-wallet target is marked seen and
// the delivery is journaled. The send error is returned unchanged; seen
// state is not advanced when the send fails.
func (p *Dispatcher) Dispatch(ctx context.Context, d Delivery) error {
	err := p.sender.Send(ctx, domain.Notification{
		SubscriberID: d.SubscriberID,
		Text:         d.Text,
		ImageURL:     d.ImageURL,
		Silent:       d.Silent,
	})
	p.metrics.RecordDelivery(err)
	if err != nil {
		p.logger.Warn("send notification failed", "subscriber", d.SubscriberID, "owner", d.Owner, "error", err)
		return err
	}

	dec := d.Decision
	if dec == nil {
		return nil
	}
	if dec.NewForWallet && dec.TargetMint != "" && p.seen != nil {
		p.seen.MarkSeen(ctx, d.SubscriberID, d.Owner, dec.TargetMint)
	}

	if p.journal != nil {
		rec := &domain.ActivityRecord{
			ID:           uuid.NewString(),
			SubscriberID: d.SubscriberID,
			Wallet:       d.Owner,
			Signature:    dec.Signature,
			Slot:         dec.Slot,
			Category:     dec.Category,
			TargetMint:   dec.TargetMint,
			NativeDelta:  dec.NativeDelta,
			Text:         d.Text,
			SentAt:       p.now().UTC(),
		}
		if err := p.journal.Append(ctx, rec); err != nil {
			p.metrics.RecordJournalError()
			p.logger.Warn("journal append failed", "subscriber", d.SubscriberID, "signature", dec.Signature, "error", err)
		}
	}
	return nil
}
