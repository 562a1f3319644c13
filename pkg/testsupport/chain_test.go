package testsupport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestFakeChainServerAnswersBlockEvents(t *testing.T) {
	srv := NewFakeChainServer()
	srv.SetEvents(1, RawEvent("NewStorageRequest", 1, 0, map[string]any{"file_key": "0x00"}))

	ts := httptest.NewServer(http.HandlerFunc(srv.Handler))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(WSURL(ts.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"id": 1, "method": "fisherman_blockEvents", "params": []any{1}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var resp struct {
		Result []any `json:"result"`
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(resp.Result) != 1 {
		t.Errorf("expected 1 event, got %d", len(resp.Result))
	}
}

func TestFakeChainServerRejectsConnectionsWhilePaused(t *testing.T) {
	srv := NewFakeChainServer()
	srv.PauseRPC(true)

	ts := httptest.NewServer(http.HandlerFunc(srv.Handler))
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(WSURL(ts.URL), nil)
	if err == nil {
		t.Fatal("expected dial to fail while paused")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 response while paused, got %+v", resp)
	}
}

func TestWSURLRewritesScheme(t *testing.T) {
	got := WSURL("http://127.0.0.1:8080")
	if !strings.HasPrefix(got, "ws://") {
		t.Errorf("expected ws:// scheme, got %s", got)
	}
}

func TestNotifyFinalizedSkippedWhilePaused(t *testing.T) {
	srv := NewFakeChainServer()
	ts := httptest.NewServer(http.HandlerFunc(srv.Handler))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(WSURL(ts.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	srv.PauseRPC(true)
	srv.NotifyFinalized(5)

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err == nil {
		t.Fatal("expected no finality notification to arrive while paused")
	}
}
