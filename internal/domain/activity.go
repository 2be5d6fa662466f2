package domain

import "time"

// Category classifies a wallet event.
type Category string

const (
	// CategorySwap is an ordinary balance change.
	CategorySwap Category = "swap"
	// CategoryNewPool is the first receipt of a token by the wallet.
	CategoryNewPool Category = "new_pool"
)

// Notification is the payload handed to a chat sender.
type Notification struct {
	SubscriberID string
	Text         string // HTML
	ImageURL     string // optional
	Silent       bool
}

// ActivityRecord is a journal entry for a delivered notification.
type ActivityRecord struct {
	ID           string
	SubscriberID string
	Wallet       string
	Signature    string
	Slot         int64
	Category     Category
	TargetMint   string
	NativeDelta  float64
	Text         string
	SentAt       time.Time
}
