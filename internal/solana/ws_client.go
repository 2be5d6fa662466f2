package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("websocket session closed")

// WSClientConfig configures WebSocket session behavior.
type WSClientConfig struct {
	// HandshakeTimeout bounds the connection handshake.
	HandshakeTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages; reset by pongs.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// RequestTimeout bounds the wait for a subscribe/unsubscribe reply.
	RequestTimeout time.Duration
	// BufferSize is the capacity of the notification channel.
	BufferSize int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     20 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		RequestTimeout:   30 * time.Second,
		BufferSize:       1024,
	}
}

// WSConn implements LogsStream using gorilla/websocket.
type WSConn struct {
	endpoint string
	config   WSClientConfig

	conn      *websocket.Conn
	writeMu   sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// pending maps request ID to the channel waiting for its reply
	pending   map[uint64]chan wsResponse
	pendingMu sync.Mutex

	notifications chan LogNotification
	dropped       atomic.Uint64

	done    chan struct{}
	errOnce sync.Once
	err     error
	wg      sync.WaitGroup
}

// DialLogs connects to endpoint and starts the session reader.
func DialLogs(ctx context.Context, endpoint string, config *WSClientConfig) (*WSConn, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &WSConn{
		endpoint:      endpoint,
		config:        cfg,
		conn:          conn,
		pending:       make(map[uint64]chan wsResponse),
		notifications: make(chan LogNotification, cfg.BufferSize),
		done:          make(chan struct{}),
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// NewDialer returns a Dialer producing WSConn sessions.
func NewDialer(config *WSClientConfig) Dialer {
	return func(ctx context.Context, endpoint string) (LogsStream, error) {
		return DialLogs(ctx, endpoint, config)
	}
}

// Endpoint returns the WebSocket endpoint URL.
func (c *WSConn) Endpoint() string {
	return c.endpoint
}

// Notifications delivers log notifications for all subscriptions.
func (c *WSConn) Notifications() <-chan LogNotification {
	return c.notifications
}

// Dropped returns the number of notifications discarded because the
// notification buffer was full.
func (c *WSConn) Dropped() uint64 {
	return c.dropped.Load()
}

// Done is closed when the session ends.
func (c *WSConn) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the session.
func (c *WSConn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Subscribe subscribes to logs mentioning address.
func (c *WSConn) Subscribe(ctx context.Context, address string) (int64, error) {
	params := []interface{}{
		map[string]interface{}{"mentions": []string{address}},
		map[string]string{"commitment": "confirmed"},
	}

	resp, err := c.request(ctx, "logsSubscribe", params)
	if err != nil {
		return 0, err
	}

	var subID int64
	if err := json.Unmarshal(resp.Result, &subID); err != nil {
		return 0, fmt.Errorf("decode subscription id: %w", err)
	}
	return subID, nil
}

// Unsubscribe cancels a logs subscription.
func (c *WSConn) Unsubscribe(ctx context.Context, subID int64) error {
	resp, err := c.request(ctx, "logsUnsubscribe", []interface{}{subID})
	if err != nil {
		return err
	}

	var ok bool
	if err := json.Unmarshal(resp.Result, &ok); err != nil {
		return fmt.Errorf("decode unsubscribe result: %w", err)
	}
	if !ok {
		return fmt.Errorf("unsubscribe %d rejected", subID)
	}
	return nil
}

// request writes a JSON-RPC request and waits for the matching reply.
func (c *WSConn) request(ctx context.Context, method string, params []interface{}) (wsResponse, error) {
	if c.closed.Load() {
		return wsResponse{}, ErrClosed
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	replyCh := make(chan wsResponse, 1)
	c.pendingMu.Lock()
	c.pending[reqID] = replyCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return wsResponse{}, fmt.Errorf("write %s: %w", method, err)
	}

	timer := time.NewTimer(c.config.RequestTimeout)
	defer timer.Stop()

	select {
	case resp := <-replyCh:
		if resp.Error != nil {
			return wsResponse{}, &rpcError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp, nil
	case <-timer.C:
		return wsResponse{}, fmt.Errorf("%s timeout after %s", method, c.config.RequestTimeout)
	case <-c.done:
		return wsResponse{}, ErrClosed
	case <-ctx.Done():
		return wsResponse{}, ctx.Err()
	}
}

// Close closes the WebSocket connection and waits for the reader to exit.
func (c *WSConn) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	c.conn.Close()
	c.finish(ErrClosed)
	c.wg.Wait()
	return nil
}

// finish records the terminal error and releases waiters once.
func (c *WSConn) finish(err error) {
	c.errOnce.Do(func() {
		c.err = err
		close(c.done)
	})
}

// readLoop reads messages until the connection fails.
func (c *WSConn) readLoop() {
	defer c.wg.Done()
	defer close(c.notifications)

	for {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				c.finish(ErrClosed)
			} else {
				c.finish(fmt.Errorf("websocket read: %w", err))
				c.conn.Close()
			}
			return
		}

		c.handleMessage(message)
	}
}

// handleMessage routes a frame to a pending request or the notification
// channel.
func (c *WSConn) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return
	}

	if env.Method == "logsNotification" {
		if env.Params == nil {
			return
		}
		value := env.Params.Result.Value
		note := LogNotification{
			Subscription: env.Params.Subscription,
			Signature:    value.Signature,
			Logs:         value.Logs,
			Err:          value.Err,
		}
		if env.Params.Result.Context != nil {
			note.Slot = env.Params.Result.Context.Slot
		}

		// Never block here: this goroutine also delivers request replies.
		select {
		case c.notifications <- note:
		default:
			c.dropped.Add(1)
		}
		return
	}

	if env.ID == 0 {
		return
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[env.ID]
	c.pendingMu.Unlock()

	if ok {
		select {
		case ch <- wsResponse{Result: env.Result, Error: env.Error}:
		default:
		}
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSConn) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				// Reader observes the broken connection
				continue
			}
		}
	}
}

// Compile-time interface check.
var _ LogsStream = (*WSConn)(nil)

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsResponse struct {
	Result json.RawMessage
	Error  *rpcError
}

// wsEnvelope covers replies ({id, result|error}) and notifications ({method, params}).
type wsEnvelope struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      uint64                `json:"id"`
	Result  json.RawMessage       `json:"result,omitempty"`
	Error   *rpcError             `json:"error,omitempty"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
