// Package notify delivers rendered wallet activity to subscriber chats.
package notify

import (
	"context"
	"log/slog"

	"solana-wallet-tracker/internal/domain"
)

// Sender delivers one notification to its subscriber's chat.
type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

// LogSender writes notifications to the log instead of a chat. It is used
// for dry runs and when no bot token is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default().
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger.With("component", "log_sender")}
}

// Send logs n.
func (s *LogSender) Send(_ context.Context, n domain.Notification) error {
	s.logger.Info("notification",
		"subscriber", n.SubscriberID,
		"silent", n.Silent,
		"image", n.ImageURL,
		"text", n.Text,
	)
	return nil
}
