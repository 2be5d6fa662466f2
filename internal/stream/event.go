// Package stream maintains the shared log subscription for all watched
// wallets and feeds matching notifications to the tracker pipeline.
package stream

import (
	"context"
	"strings"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/solana"
)

// Event is one log notification reduced to what the pipeline needs.
type Event struct {
	Signature string
	Slot      int64
	Mentions  []string // base58 tokens found in the log lines
}

// Handler processes events. Implementations must be safe for concurrent use.
type Handler interface {
	Handle(ctx context.Context, ev Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event)

// Handle calls f(ctx, ev).
func (f HandlerFunc) Handle(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// NewEvent converts a raw log notification.
func NewEvent(note solana.LogNotification) Event {
	return Event{
		Signature: note.Signature,
		Slot:      note.Slot,
		Mentions:  ExtractMentions(note.Logs),
	}
}

// ExtractMentions returns the distinct address-shaped tokens of logs in
// order of first appearance.
func ExtractMentions(logs []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range logs {
		for _, tok := range strings.Fields(line) {
			if !domain.IsValidAddress(tok) {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}
