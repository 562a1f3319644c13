// Package chainrpc is the fisherman's chain RPC client: it subscribes to
// finalized heads over a JSON-RPC-over-WebSocket connection, fetches the
// event list for a block, submits signed extrinsics and accepts only a
// finalized outcome, and queries a provider's current forest root.
package chainrpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/moonsong-labs/fisherman/pkg/ferr"
	"github.com/moonsong-labs/fisherman/pkg/types"
)

// FinalizedHead is one notification from the finality subscription.
type FinalizedHead struct {
	Height uint64
	Hash   [32]byte
}

// Client is a single multiplexed connection shared across the Indexer and
// Fisherman, per the concurrency design's "RPC connection is shared across
// tasks with an internal multiplexer" policy.
type Client struct {
	url     string
	timeout time.Duration

	mu     sync.Mutex // guards conn writes and pauseGate
	conn   *websocket.Conn
	nextID uint64

	pending   map[uint64]chan rpcResponse
	pendingMu sync.Mutex

	feed chan FinalizedHead

	paused    atomic.Bool
	pauseGate chan struct{} // closed while not paused; replaced on Pause

	closeOnce sync.Once
	closed    chan struct{}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Dial connects to url and starts the background read loop. feedCapacity
// bounds the finality-notification channel; sends block when full,
// matching the "blocking enqueue required, drop-oldest forbidden" policy.
func Dial(ctx context.Context, url string, timeout time.Duration, feedCapacity int) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, ferr.New(ferr.Transient, "chainrpc.Dial", err)
	}

	c := &Client{
		url:       url,
		timeout:   timeout,
		conn:      conn,
		pending:   make(map[uint64]chan rpcResponse),
		feed:      make(chan FinalizedHead, feedCapacity),
		closed:    make(chan struct{}),
		pauseGate: closedGate(),
	}
	go c.readLoop()
	return c, nil
}

func closedGate() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// PauseRPC is a test-only fault-injection hook: every call blocks until
// ResumeRPC is called, simulating an RPC endpoint going dark mid-sync.
func (c *Client) PauseRPC() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused.CompareAndSwap(false, true) {
		c.pauseGate = make(chan struct{})
	}
}

// ResumeRPC undoes PauseRPC.
func (c *Client) ResumeRPC() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused.CompareAndSwap(true, false) {
		close(c.pauseGate)
	}
}

func (c *Client) waitForResume(ctx context.Context) error {
	c.mu.Lock()
	gate := c.pauseGate
	c.mu.Unlock()
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Feed returns the channel of finalized head notifications. The Indexer
// reads from this exclusively.
func (c *Client) Feed() <-chan FinalizedHead { return c.feed }

func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			close(c.feed)
			return
		}

		var envelope struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
			ID     *uint64         `json:"id"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			continue
		}

		if envelope.ID != nil {
			var resp rpcResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				c.pendingMu.Lock()
				if ch, ok := c.pending[resp.ID]; ok {
					ch <- resp
					delete(c.pending, resp.ID)
				}
				c.pendingMu.Unlock()
			}
			continue
		}

		if envelope.Method == "chain_finalizedHead" {
			var head FinalizedHead
			if err := json.Unmarshal(envelope.Params, &head); err != nil {
				continue
			}
			c.feed <- head // blocking send: backpressure is intentional
		}
	}
}

// call performs a single JSON-RPC request/response round trip, honoring
// both the context deadline and the test-only pause gate.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	if err := c.waitForResume(ctx); err != nil {
		return ferr.New(ferr.Transient, "chainrpc.call", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	id := atomic.AddUint64(&c.nextID, 1)
	respCh := make(chan rpcResponse, 1)

	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	c.mu.Lock()
	err := c.conn.WriteJSON(req)
	c.mu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return ferr.New(ferr.Transient, "chainrpc.call", fmt.Errorf("%s: %w", method, err))
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return ferr.New(ferr.Transient, "chainrpc.call", fmt.Errorf("%s: rpc error %d: %s", method, resp.Error.Code, resp.Error.Message))
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return ferr.New(ferr.Fatal, "chainrpc.call", fmt.Errorf("%s: decoding result: %w", method, err))
		}
		return nil
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return ferr.New(ferr.Transient, "chainrpc.call", fmt.Errorf("%s: %w", method, ctx.Err()))
	}
}

// BlockEvents fetches the decoded event list for a finalized block at height.
func (c *Client) BlockEvents(ctx context.Context, height uint64) ([]types.Event, error) {
	var events []types.Event
	err := c.call(ctx, "fisherman_blockEvents", []any{height}, &events)
	return events, err
}

// ForestRoot queries the current forest root for a storage provider. The
// result arrives as a "0x"-prefixed hex string, the same wire convention
// BlockEvents' byte fields use (see pkg/indexer/fields.go's decodeHex).
func (c *Client) ForestRoot(ctx context.Context, provider types.ProviderID) (types.ForestRoot, error) {
	var root types.ForestRoot
	var raw string
	if err := c.call(ctx, "fisherman_forestRoot", []any{provider[:]}, &raw); err != nil {
		return root, err
	}
	b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return root, ferr.New(ferr.Fatal, "chainrpc.ForestRoot", fmt.Errorf("decoding forest root: %w", err))
	}
	if len(b) != len(root) {
		return root, ferr.New(ferr.Fatal, "chainrpc.ForestRoot", fmt.Errorf("expected %d-byte forest root, got %d", len(root), len(b)))
	}
	copy(root[:], b)
	return root, nil
}

// BucketInfo queries the chain for a bucket's current on-chain record, used
// by the client SDK to resolve a bucket's managing MSP before issuing a
// storage or deletion request against it. The result is the raw decoded
// field map, in the same "0x"-prefixed-hex convention BlockEvents returns
// event data in, since this RPC surface has no typed bucket response.
func (c *Client) BucketInfo(ctx context.Context, bucket types.BucketID) (map[string]any, error) {
	var raw map[string]any
	err := c.call(ctx, "fisherman_bucketInfo", []any{bucket[:]}, &raw)
	return raw, err
}

// ExtrinsicOutcome is the result of SubmitExtrinsic once the chain confirms
// finality.
type ExtrinsicOutcome struct {
	BlockHeight uint64
	Events      []types.Event
}

// SubmitExtrinsic submits a SCALE-encoded signed extrinsic and takes the
// node's first response on the request id as its outcome. A response whose
// status is not "finalized" is reported as a Transient error; later status
// notifications on the same id are not read.
func (c *Client) SubmitExtrinsic(ctx context.Context, extrinsic []byte) (ExtrinsicOutcome, error) {
	var outcome ExtrinsicOutcome
	var status struct {
		Finalized   bool            `json:"finalized"`
		BlockHeight uint64          `json:"blockHeight"`
		Events      []types.Event   `json:"events"`
		Error       json.RawMessage `json:"error"`
	}
	if err := c.call(ctx, "author_submitAndWatchExtrinsic", []any{extrinsic}, &status); err != nil {
		return outcome, err
	}
	if status.Error != nil {
		return outcome, ferr.New(ferr.Transient, "chainrpc.SubmitExtrinsic", fmt.Errorf("extrinsic rejected: %s", status.Error))
	}
	if !status.Finalized {
		return outcome, ferr.New(ferr.Transient, "chainrpc.SubmitExtrinsic", fmt.Errorf("extrinsic not finalized"))
	}
	outcome.BlockHeight = status.BlockHeight
	outcome.Events = status.Events
	return outcome, nil
}

// Close terminates the connection and the read loop.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
