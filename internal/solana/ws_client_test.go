package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// fakeNode is a minimal logs-subscription WebSocket server.
type fakeNode struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	requests []wsRequest
	nextSub  int64
	reject   bool
	burst    int // notifications written ahead of each subscribe reply

	ready chan struct{}
}

func newFakeNode(t *testing.T) *fakeNode {
	n := &fakeNode{t: t, nextSub: 100, ready: make(chan struct{})}
	n.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		n.mu.Lock()
		n.conn = c
		n.mu.Unlock()
		close(n.ready)
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				t.Errorf("unmarshal request: %v", err)
				return
			}

			n.mu.Lock()
			n.requests = append(n.requests, req)
			var resp map[string]interface{}
			switch {
			case n.reject:
				resp = map[string]interface{}{
					"jsonrpc": "2.0",
					"id":      req.ID,
					"error":   map[string]interface{}{"code": -32602, "message": "Invalid params"},
				}
			case req.Method == "logsSubscribe":
				for i := 0; i < n.burst; i++ {
					if err := n.writeNotification(c, n.nextSub, "burst", nil); err != nil {
						n.mu.Unlock()
						return
					}
				}
				n.nextSub++
				resp = map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": n.nextSub}
			case req.Method == "logsUnsubscribe":
				resp = map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": true}
			}
			err = c.WriteJSON(resp)
			n.mu.Unlock()
			if err != nil {
				return
			}
		}
	}))
	return n
}

func (n *fakeNode) url() string {
	return "ws" + strings.TrimPrefix(n.server.URL, "http")
}

func (n *fakeNode) notify(subID int64, signature string, logs []string) {
	<-n.ready
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.writeNotification(n.conn, subID, signature, logs); err != nil {
		n.t.Errorf("write notification: %v", err)
	}
}

// writeNotification sends one logsNotification frame. n.mu must be held.
func (n *fakeNode) writeNotification(c *websocket.Conn, subID int64, signature string, logs []string) error {
	return c.WriteJSON(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "logsNotification",
		"params": map[string]interface{}{
			"subscription": subID,
			"result": map[string]interface{}{
				"context": map[string]interface{}{"slot": 4242},
				"value": map[string]interface{}{
					"signature": signature,
					"logs":      logs,
					"err":       nil,
				},
			},
		},
	})
}

func (n *fakeNode) dropConnection() {
	<-n.ready
	n.mu.Lock()
	defer n.mu.Unlock()
	n.conn.Close()
}

func TestWSConn_SubscribeAndNotify(t *testing.T) {
	node := newFakeNode(t)
	defer node.server.Close()

	ctx := context.Background()
	conn, err := DialLogs(ctx, node.url(), nil)
	if err != nil {
		t.Fatalf("DialLogs: %v", err)
	}
	defer conn.Close()

	subID, err := conn.Subscribe(ctx, "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if subID != 101 {
		t.Errorf("expected subscription 101, got %d", subID)
	}

	node.mu.Lock()
	req := node.requests[0]
	node.mu.Unlock()
	if req.Method != "logsSubscribe" {
		t.Errorf("expected logsSubscribe, got %s", req.Method)
	}
	filter, _ := req.Params[0].(map[string]interface{})
	mentions, _ := filter["mentions"].([]interface{})
	if len(mentions) != 1 || mentions[0] != "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM" {
		t.Errorf("unexpected mentions filter: %v", filter)
	}

	node.notify(subID, "sig123", []string{"Program log: hello"})

	select {
	case note := <-conn.Notifications():
		if note.Signature != "sig123" {
			t.Errorf("expected signature sig123, got %s", note.Signature)
		}
		if note.Subscription != subID {
			t.Errorf("expected subscription %d, got %d", subID, note.Subscription)
		}
		if note.Slot != 4242 {
			t.Errorf("expected slot 4242, got %d", note.Slot)
		}
		if len(note.Logs) != 1 {
			t.Errorf("expected 1 log line, got %d", len(note.Logs))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSConn_Unsubscribe(t *testing.T) {
	node := newFakeNode(t)
	defer node.server.Close()

	ctx := context.Background()
	conn, err := DialLogs(ctx, node.url(), nil)
	if err != nil {
		t.Fatalf("DialLogs: %v", err)
	}
	defer conn.Close()

	if err := conn.Unsubscribe(ctx, 7); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}

	node.mu.Lock()
	defer node.mu.Unlock()
	if len(node.requests) != 1 || node.requests[0].Method != "logsUnsubscribe" {
		t.Fatalf("expected one logsUnsubscribe request, got %+v", node.requests)
	}
	if id, _ := node.requests[0].Params[0].(float64); id != 7 {
		t.Errorf("expected subscription 7, got %v", node.requests[0].Params[0])
	}
}

func TestWSConn_ErrorReply(t *testing.T) {
	node := newFakeNode(t)
	node.reject = true
	defer node.server.Close()

	ctx := context.Background()
	conn, err := DialLogs(ctx, node.url(), nil)
	if err != nil {
		t.Fatalf("DialLogs: %v", err)
	}
	defer conn.Close()

	_, err = conn.Subscribe(ctx, "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	rpcErr, ok := err.(*rpcError)
	if !ok {
		t.Fatalf("expected rpcError, got %T (%v)", err, err)
	}
	if rpcErr.Code != -32602 {
		t.Errorf("expected code -32602, got %d", rpcErr.Code)
	}
}

func TestWSConn_DoneOnServerClose(t *testing.T) {
	node := newFakeNode(t)
	defer node.server.Close()

	conn, err := DialLogs(context.Background(), node.url(), nil)
	if err != nil {
		t.Fatalf("DialLogs: %v", err)
	}
	defer conn.Close()

	node.dropConnection()

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after server closed the connection")
	}

	if conn.Err() == nil {
		t.Error("expected terminal error")
	}

	if _, ok := <-conn.Notifications(); ok {
		t.Error("notification channel should be closed")
	}
}

func TestWSConn_Close(t *testing.T) {
	node := newFakeNode(t)
	defer node.server.Close()

	ctx := context.Background()
	conn, err := DialLogs(ctx, node.url(), nil)
	if err != nil {
		t.Fatalf("DialLogs: %v", err)
	}

	if err := conn.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	// Double close should be safe
	if err := conn.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}

	if _, err := conn.Subscribe(ctx, "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"); err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestDialLogs_BadEndpoint(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := DialLogs(ctx, "ws://127.0.0.1:1", nil); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestWSConn_FullBufferDoesNotBlockReplies(t *testing.T) {
	node := newFakeNode(t)
	defer node.server.Close()

	cfg := DefaultWSConfig()
	cfg.BufferSize = 2
	cfg.RequestTimeout = 2 * time.Second

	ctx := context.Background()
	conn, err := DialLogs(ctx, node.url(), &cfg)
	if err != nil {
		t.Fatalf("DialLogs: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Subscribe(ctx, "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"); err != nil {
		t.Fatalf("first Subscribe: %v", err)
	}

	node.mu.Lock()
	node.burst = 4
	node.mu.Unlock()

	// Nobody reads Notifications while the second reply is pending.
	if _, err := conn.Subscribe(ctx, "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"); err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}

	if got := conn.Dropped(); got != 2 {
		t.Errorf("expected 2 dropped notifications, got %d", got)
	}
	if got := len(conn.Notifications()); got != 2 {
		t.Errorf("expected 2 buffered notifications, got %d", got)
	}
}
