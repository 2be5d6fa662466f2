package stub

import (
	"context"
	"errors"
	"sync"

	"solana-wallet-tracker/internal/solana"
)

// LogsStream implements solana.LogsStream in memory.
type LogsStream struct {
	Endpoint string

	mu      sync.Mutex
	nextID  int64
	subs    map[int64]string // subscription ID -> address
	history []string         // "+addr" / "-addr" in call order

	notes   chan solana.LogNotification
	done    chan struct{}
	err     error
	stopped bool
}

// NewLogsStream creates an open stub stream.
func NewLogsStream(endpoint string) *LogsStream {
	return &LogsStream{
		Endpoint: endpoint,
		subs:     make(map[int64]string),
		notes:    make(chan solana.LogNotification, 64),
		done:     make(chan struct{}),
	}
}

// Subscribe records a subscription.
func (s *LogsStream) Subscribe(_ context.Context, address string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0, solana.ErrClosed
	}
	s.nextID++
	s.subs[s.nextID] = address
	s.history = append(s.history, "+"+address)
	return s.nextID, nil
}

// Unsubscribe removes a subscription.
func (s *LogsStream) Unsubscribe(_ context.Context, subID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return solana.ErrClosed
	}
	addr, ok := s.subs[subID]
	if !ok {
		return errors.New("unknown subscription")
	}
	delete(s.subs, subID)
	s.history = append(s.history, "-"+addr)
	return nil
}

// Notifications delivers pushed notifications.
func (s *LogsStream) Notifications() <-chan solana.LogNotification {
	return s.notes
}

// Done is closed when the stream is dropped or closed.
func (s *LogsStream) Done() <-chan struct{} {
	return s.done
}

// Err returns the error passed to Drop.
func (s *LogsStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the stream.
func (s *LogsStream) Close() error {
	s.Drop(solana.ErrClosed)
	return nil
}

// Drop ends the session with err, simulating a transport failure.
func (s *LogsStream) Drop(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.err = err
	close(s.done)
}

// Push delivers a notification to the consumer.
func (s *LogsStream) Push(note solana.LogNotification) {
	s.notes <- note
}

// Subscribed returns the currently subscribed addresses keyed by subscription ID.
func (s *LogsStream) Subscribed() map[int64]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]string, len(s.subs))
	for id, addr := range s.subs {
		out[id] = addr
	}
	return out
}

// History returns subscribe/unsubscribe calls in order.
func (s *LogsStream) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

var _ solana.LogsStream = (*LogsStream)(nil)
