package solana

import "context"

// LogsStream is a single WebSocket session carrying logs subscriptions.
// A session does not reconnect; once Done is closed it must be replaced.
type LogsStream interface {
	// Subscribe subscribes to logs mentioning address and returns the
	// node-assigned subscription ID.
	Subscribe(ctx context.Context, address string) (int64, error)

	// Unsubscribe cancels a subscription.
	Unsubscribe(ctx context.Context, subID int64) error

	// Notifications delivers log notifications for all subscriptions.
	Notifications() <-chan LogNotification

	// Done is closed when the session ends.
	Done() <-chan struct{}

	// Err returns the error that ended the session, if any.
	Err() error

	// Close closes the WebSocket connection.
	Close() error
}

// Dialer opens a LogsStream against endpoint.
type Dialer func(ctx context.Context, endpoint string) (LogsStream, error)

// LogNotification represents a logs subscription message.
type LogNotification struct {
	Subscription int64
	Signature    string
	Slot         int64
	Logs         []string
	Err          interface{}
}
