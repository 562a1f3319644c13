// Package testsupport provides fakes shared across package test suites: an
// in-memory chain RPC server standing in for a storage-hub node, and a
// temp-file store constructor, both with fault-injection hooks for exercising
// the indexer and fisherman loops' reconnect and retry paths.
package testsupport

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// FakeChainServer answers fisherman_blockEvents from a fixed table of
// per-height event lists and can emit finality notifications on demand. Call
// PauseRPC(true) to make it refuse new connections and stop answering
// requests on already-open ones, simulating a node that has dropped off the
// network.
type FakeChainServer struct {
	mu              sync.Mutex
	events          map[uint64][]json.RawMessage
	conns           []*websocket.Conn
	paused          bool
	forestRoot      string
	extrinsicBlock  uint64
	extrinsicEvents []json.RawMessage
}

// NewFakeChainServer returns an empty FakeChainServer ready to be wrapped in
// an httptest.Server.
func NewFakeChainServer() *FakeChainServer {
	return &FakeChainServer{events: make(map[uint64][]json.RawMessage)}
}

// SetEvents fixes the event list fisherman_blockEvents returns for height.
func (f *FakeChainServer) SetEvents(height uint64, events ...json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[height] = events
}

// SetForestRoot fixes the "0x"-prefixed hex string fisherman_forestRoot
// returns for any provider.
func (f *FakeChainServer) SetForestRoot(hexRoot string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forestRoot = hexRoot
}

// SetExtrinsicOutcome fixes the finalized block height and event list
// author_submitAndWatchExtrinsic reports for any submitted extrinsic.
func (f *FakeChainServer) SetExtrinsicOutcome(blockHeight uint64, events ...json.RawMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extrinsicBlock = blockHeight
	f.extrinsicEvents = events
}

// PauseRPC toggles simulated node unavailability. While paused, new
// connection attempts are refused and the handler stops servicing requests
// on connections already open.
func (f *FakeChainServer) PauseRPC(paused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = paused
}

// NotifyFinalized pushes a chain_finalizedHead subscription message to every
// currently connected client.
func (f *FakeChainServer) NotifyFinalized(height uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return
	}
	msg := map[string]any{
		"jsonrpc": "2.0",
		"method":  "chain_finalizedHead",
		"params":  map[string]any{"Height": height},
	}
	data, _ := json.Marshal(msg)
	for _, c := range f.conns {
		c.WriteMessage(websocket.TextMessage, data)
	}
}

// Handler implements http.HandlerFunc, upgrading each request to a websocket
// and servicing fisherman_blockEvents calls against the fixed event table.
func (f *FakeChainServer) Handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	paused := f.paused
	f.mu.Unlock()
	if paused {
		http.Error(w, "node unavailable", http.StatusServiceUnavailable)
		return
	}

	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	defer conn.Close()

	for {
		var req struct {
			ID     uint64 `json:"id"`
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		f.mu.Lock()
		paused := f.paused
		f.mu.Unlock()
		if paused {
			return
		}

		switch req.Method {
		case "fisherman_blockEvents":
			height := uint64(req.Params[0].(float64))
			f.mu.Lock()
			events := f.events[height]
			f.mu.Unlock()
			if events == nil {
				events = []json.RawMessage{}
			}
			conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": events})
		case "fisherman_forestRoot":
			f.mu.Lock()
			root := f.forestRoot
			f.mu.Unlock()
			conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": root})
		case "author_submitAndWatchExtrinsic":
			f.mu.Lock()
			blockHeight := f.extrinsicBlock
			events := f.extrinsicEvents
			f.mu.Unlock()
			if events == nil {
				events = []json.RawMessage{}
			}
			result := map[string]any{
				"finalized":   true,
				"blockHeight": blockHeight,
				"events":      events,
			}
			conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
		default:
			conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": []any{}})
		}
	}
}

// WSURL rewrites an httptest.Server's http:// URL into the ws:// scheme the
// chain RPC dialer expects.
func WSURL(httpURL string) string { return "ws" + strings.TrimPrefix(httpURL, "http") }

// RawEvent builds a fisherman_blockEvents-shaped event record for use with
// FakeChainServer.SetEvents.
func RawEvent(kind string, blockHeight, index int, data map[string]any) json.RawMessage {
	obj := map[string]any{"BlockHeight": blockHeight, "Index": index, "Kind": kind, "Data": data}
	b, _ := json.Marshal(obj)
	return b
}
