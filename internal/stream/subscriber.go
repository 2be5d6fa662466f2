package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"solana-wallet-tracker/internal/observability"
	"solana-wallet-tracker/internal/solana"
)

// State is the connection state of the subscriber.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSubscribed   State = "subscribed"
)

var allStates = []string{string(StateDisconnected), string(StateConnecting), string(StateSubscribed)}

var errEndpointChanged = errors.New("stream endpoint changed")

// Source supplies the addresses to subscribe and the endpoint to use.
// subscription.Registry implements it.
type Source interface {
	WatchedAddresses() []string
	StreamEndpoint() string
	Changes() <-chan struct{}
}

// Warmer is started in the background each time a session is established.
// At most one Warm call runs at a time.
type Warmer interface {
	Warm(ctx context.Context)
}

// Options contains configuration for creating a Subscriber.
type Options struct {
	Source         Source
	Dialer         solana.Dialer
	Handler        Handler
	Warmer         Warmer        // optional
	ReconnectDelay time.Duration // Default: 3s
	Workers        int           // Default: 8
	QueueSize      int           // Default: 1024
	Metrics        *observability.Metrics
	Logger         *slog.Logger
}

// Subscriber keeps one WebSocket session subscribed to the union of all
// watched addresses. It reconnects after transport failures and follows
// registry changes without polling.
type Subscriber struct {
	source         Source
	dial           solana.Dialer
	handler        Handler
	warmer         Warmer
	reconnectDelay time.Duration
	workers        int
	queueSize      int
	metrics        *observability.Metrics
	logger         *slog.Logger

	state    atomic.Value // State
	endpoint atomic.Value // string
	dropped  atomic.Int64

	warming atomic.Bool
	bg      sync.WaitGroup
}

// NewSubscriber creates a new stream subscriber.
func NewSubscriber(opts Options) *Subscriber {
	delay := opts.ReconnectDelay
	if delay == 0 {
		delay = 3 * time.Second
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}
	queue := opts.QueueSize
	if queue <= 0 {
		queue = 1024
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Subscriber{
		source:         opts.Source,
		dial:           opts.Dialer,
		handler:        opts.Handler,
		warmer:         opts.Warmer,
		reconnectDelay: delay,
		workers:        workers,
		queueSize:      queue,
		metrics:        opts.Metrics,
		logger:         logger.With("component", "stream"),
	}
	s.state.Store(StateDisconnected)
	s.endpoint.Store("")
	return s
}

// State returns the current connection state.
func (s *Subscriber) State() State {
	return s.state.Load().(State)
}

// Endpoint returns the endpoint of the current or last session.
func (s *Subscriber) Endpoint() string {
	return s.endpoint.Load().(string)
}

// Dropped returns the number of events discarded because the worker queue was full.
func (s *Subscriber) Dropped() int64 {
	return s.dropped.Load()
}

func (s *Subscriber) setState(st State) {
	s.state.Store(st)
	s.metrics.SetStreamState(string(st), allStates)
}

// Run drives the connection state machine until ctx is cancelled.
// It always returns ctx.Err().
func (s *Subscriber) Run(ctx context.Context) error {
	jobs := make(chan Event, s.queueSize)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range jobs {
				s.handler.Handle(ctx, ev)
			}
		}()
	}
	defer func() {
		close(jobs)
		wg.Wait()
		s.bg.Wait()
		s.setState(StateDisconnected)
	}()

	for {
		s.setState(StateConnecting)
		endpoint := s.source.StreamEndpoint()
		s.endpoint.Store(endpoint)

		err := s.session(ctx, endpoint, jobs)
		s.setState(StateDisconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if errors.Is(err, errEndpointChanged) {
			s.logger.Info("endpoint changed, reconnecting", "old", endpoint, "new", s.source.StreamEndpoint())
			continue
		}

		s.logger.Warn("stream session ended", "endpoint", endpoint, "error", err, "retry_in", s.reconnectDelay)
		s.metrics.RecordReconnect()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.reconnectDelay):
		}
	}
}

// session runs one connection until it fails, ctx is cancelled or the
// selected endpoint changes.
func (s *Subscriber) session(ctx context.Context, endpoint string, jobs chan<- Event) error {
	conn, err := s.dial(ctx, endpoint)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.warm(ctx)

	// Notifications are drained for the whole session, including while
	// sync waits for subscribe replies.
	stop := make(chan struct{})
	var fwd sync.WaitGroup
	fwd.Add(1)
	go func() {
		defer fwd.Done()
		s.forward(stop, conn.Notifications(), jobs)
	}()
	defer func() {
		close(stop)
		fwd.Wait()
	}()

	subs := make(map[string]int64)
	if err := s.sync(ctx, conn, subs); err != nil {
		return err
	}
	s.setState(StateSubscribed)
	s.logger.Info("stream subscribed", "endpoint", endpoint, "addresses", len(subs))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-conn.Done():
			if err := conn.Err(); err != nil {
				return err
			}
			return solana.ErrClosed

		case <-s.source.Changes():
			if next := s.source.StreamEndpoint(); next != endpoint {
				return errEndpointChanged
			}
			if err := s.sync(ctx, conn, subs); err != nil {
				return err
			}
		}
	}
}

// warm starts the Warmer unless a previous call is still running.
func (s *Subscriber) warm(ctx context.Context) {
	if s.warmer == nil || !s.warming.CompareAndSwap(false, true) {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer s.warming.Store(false)
		s.warmer.Warm(ctx)
	}()
}

// forward moves notifications into the worker queue until stop is closed
// or the session's channel is closed.
func (s *Subscriber) forward(stop <-chan struct{}, notes <-chan solana.LogNotification, jobs chan<- Event) {
	for {
		select {
		case <-stop:
			return
		case note, ok := <-notes:
			if !ok {
				return
			}
			ev := NewEvent(note)
			s.metrics.RecordNotification(ev.Slot)
			select {
			case jobs <- ev:
			default:
				s.dropped.Add(1)
				s.logger.Warn("worker queue full, dropping notification", "signature", ev.Signature)
			}
		}
	}
}

// sync subscribes added addresses and unsubscribes removed ones. subs maps
// address to subscription ID and is updated in place.
func (s *Subscriber) sync(ctx context.Context, conn solana.LogsStream, subs map[string]int64) error {
	want := make(map[string]struct{})
	for _, addr := range s.source.WatchedAddresses() {
		want[addr] = struct{}{}
		if _, ok := subs[addr]; ok {
			continue
		}
		id, err := conn.Subscribe(ctx, addr)
		if err != nil {
			return err
		}
		subs[addr] = id
		s.logger.Debug("subscribed", "address", addr, "subscription", id)
	}

	for addr, id := range subs {
		if _, ok := want[addr]; ok {
			continue
		}
		if err := conn.Unsubscribe(ctx, id); err != nil {
			if errors.Is(err, solana.ErrClosed) {
				return err
			}
			s.logger.Warn("unsubscribe failed", "address", addr, "subscription", id, "error", err)
		}
		delete(subs, addr)
		s.logger.Debug("unsubscribed", "address", addr, "subscription", id)
	}

	s.metrics.SetSubscribed(len(subs))
	return nil
}
