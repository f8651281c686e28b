package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// idleServer accepts a connection and drains it until closed.
func idleServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSClient_Connect(t *testing.T) {
	server := idleServer(t)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestWSClient_SubscribeLogs(t *testing.T) {
	reqCh := make(chan wsRequest, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		reqCh <- req

		if err := c.WriteJSON(wsSubscribeResponse{JSONRPC: "2.0", ID: req.ID, Result: 12345}); err != nil {
			return
		}

		time.Sleep(50 * time.Millisecond)
		notif := wsNotification{
			JSONRPC: "2.0",
			Method:  "logsNotification",
			Params: &wsNotificationParams{
				Subscription: 12345,
				Result: wsNotificationResult{
					Context: &wsContext{Slot: 100},
					Value: wsLogsValue{
						Signature: "testsig",
						Logs:      []string{"Program log: initialize2"},
					},
				},
			},
		}
		if err := c.WriteJSON(notif); err != nil {
			return
		}

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL(server), nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeLogs(ctx, LogsFilter{Mention: "tracked"})
	if err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}

	req := <-reqCh
	if req.Method != "logsSubscribe" {
		t.Errorf("expected logsSubscribe, got %s", req.Method)
	}
	filter, ok := req.Params[0].(map[string]interface{})
	if !ok {
		t.Fatalf("expected mentions filter, got %T", req.Params[0])
	}
	mentions, _ := filter["mentions"].([]interface{})
	if len(mentions) != 1 || mentions[0] != "tracked" {
		t.Errorf("unexpected mentions %v", filter["mentions"])
	}

	select {
	case notif := <-ch:
		if notif.Signature != "testsig" {
			t.Errorf("expected testsig, got %s", notif.Signature)
		}
		if notif.Slot != 100 {
			t.Errorf("expected slot 100, got %d", notif.Slot)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}
}

func TestWSClient_SubscribeTimeout(t *testing.T) {
	server := idleServer(t)
	defer server.Close()

	cfg := DefaultWSConfig()
	cfg.SubscribeTimeout = 50 * time.Millisecond

	client, err := NewWSClient(context.Background(), wsURL(server), &cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if _, err := client.SubscribeLogs(context.Background(), LogsFilter{}); err == nil {
		t.Fatal("expected subscription timeout")
	}
}

func TestWSClient_Close(t *testing.T) {
	server := idleServer(t)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !client.closed.Load() {
		t.Error("client should be closed")
	}

	// Double close should be safe
	if err := client.Close(); err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestWSClient_SubscribeAfterClose(t *testing.T) {
	server := idleServer(t)
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	client.Close()

	_, err = client.SubscribeLogs(context.Background(), LogsFilter{})
	if !errors.Is(err, ErrClientClosed) {
		t.Errorf("expected ErrClientClosed, got %v", err)
	}
}

func TestWSClient_CustomConfig(t *testing.T) {
	server := idleServer(t)
	defer server.Close()

	config := &WSClientConfig{
		ReconnectDelay:    100 * time.Millisecond,
		MaxReconnectDelay: 1 * time.Second,
		PingInterval:      5 * time.Second,
	}

	client, err := NewWSClient(context.Background(), wsURL(server), config, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.config.PingInterval != 5*time.Second {
		t.Errorf("expected PingInterval 5s, got %v", client.config.PingInterval)
	}
	if client.config.ReadTimeout != DefaultWSConfig().ReadTimeout {
		t.Errorf("expected default ReadTimeout, got %v", client.config.ReadTimeout)
	}
	if client.config.BufferSize != DefaultWSConfig().BufferSize {
		t.Errorf("expected default BufferSize, got %d", client.config.BufferSize)
	}
}

func TestWSClient_ReconnectResubscribes(t *testing.T) {
	reqCh := make(chan wsRequest, 4)
	var conns atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		n := conns.Add(1)

		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		reqCh <- req

		if err := c.WriteJSON(wsSubscribeResponse{JSONRPC: "2.0", ID: req.ID, Result: int64(100 + n)}); err != nil {
			return
		}
		if n == 1 {
			// Drop the first connection once subscribed.
			time.Sleep(50 * time.Millisecond)
			return
		}
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond

	client, err := NewWSClient(context.Background(), wsURL(server), &cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	if _, err := client.SubscribeLogs(context.Background(), LogsFilter{Mention: "tracked"}); err != nil {
		t.Fatalf("SubscribeLogs: %v", err)
	}
	<-reqCh

	select {
	case req := <-reqCh:
		if req.Method != "logsSubscribe" {
			t.Errorf("expected logsSubscribe after reconnect, got %s", req.Method)
		}
		filter, _ := req.Params[0].(map[string]interface{})
		mentions, _ := filter["mentions"].([]interface{})
		if len(mentions) != 1 || mentions[0] != "tracked" {
			t.Errorf("unexpected resubscribe filter %v", req.Params[0])
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for resubscribe")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		client.subsMu.Lock()
		_, moved := client.subs[102]
		_, stale := client.subs[101]
		client.subsMu.Unlock()
		if moved && !stale {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscription not moved to the new id")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if client.reconnecting.Load() {
		t.Error("Close returned while a reconnect was still running")
	}
}

func TestWSClient_CloseInterruptsReconnect(t *testing.T) {
	server := idleServer(t)

	cfg := DefaultWSConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 20 * time.Millisecond
	cfg.ReadTimeout = 100 * time.Millisecond

	client, err := NewWSClient(context.Background(), wsURL(server), &cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	// Every reconnect attempt now fails.
	server.CloseClientConnections()
	server.Close()
	time.Sleep(200 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		client.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on reconnect")
	}
	if client.reconnecting.Load() {
		t.Error("Close returned while a reconnect was still running")
	}
}

func TestWSClient_DialError(t *testing.T) {
	_, err := NewWSClient(context.Background(), "ws://127.0.0.1:1", nil, nil)
	if err == nil {
		t.Fatal("expected dial error")
	}
}

func TestLogsFilter_Params(t *testing.T) {
	if got := (LogsFilter{}).params(); got != "all" {
		t.Errorf("empty filter: expected \"all\", got %v", got)
	}
	got, ok := (LogsFilter{Mention: "acct"}).params().(map[string][]string)
	if !ok || len(got["mentions"]) != 1 || got["mentions"][0] != "acct" {
		t.Errorf("unexpected params %v", got)
	}
	if !(LogNotification{Err: map[string]interface{}{"InstructionError": nil}}).Failed() {
		t.Error("expected notification with err to be failed")
	}
}
