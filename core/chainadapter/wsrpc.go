package chainadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/YouWishh/oceans-subnet/internal/retry"
)

// wsRequest is a minimal JSON-RPC 2.0 request frame.
type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// wsResponse is a minimal JSON-RPC 2.0 response frame.
type wsResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *wsRPCError     `json:"error"`
}

type wsRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *wsRPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// wsClient is a bounded-retry JSON-RPC client over a single long-lived
// websocket connection, reconnecting lazily on the next call after a
// transport failure (§4.A: "all operations may fail transiently").
type wsClient struct {
	url string
	log *logrus.Entry

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
	dialer *websocket.Dialer
}

func newWSClient(url string, log *logrus.Entry) *wsClient {
	return &wsClient{
		url:    url,
		log:    log,
		dialer: websocket.DefaultDialer,
		nextID: 1,
	}
}

func (c *wsClient) ensureConn(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn
	return nil
}

// dropConnLocked closes and clears the connection. Callers must hold c.mu.
func (c *wsClient) dropConnLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// call performs one JSON-RPC round-trip, retrying the whole dial+request
// cycle with factor-2 no-jitter backoff up to 5 attempts (§4.A, §5).
//
// gorilla/websocket forbids concurrent readers or concurrent writers on the
// same *Conn, and these frames carry no response-matching beyond trusting
// read-after-write ordering, so the whole write+read round-trip runs under
// c.mu: callers racing each other (the Liquidity Ingestor's per-coldkey
// fan-out, §5) are serialized onto the one connection instead of racing its
// reader/writer.
func (c *wsClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	return retry.Do(ctx, 5, 250*time.Millisecond, func(error) bool { return true }, func() error {
		if err := c.ensureConn(ctx); err != nil {
			return err
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		id := c.nextID
		c.nextID++

		req := wsRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
		if err := c.conn.WriteJSON(req); err != nil {
			c.dropConnLocked()
			return fmt.Errorf("write %s: %w", method, err)
		}

		var resp wsResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			c.dropConnLocked()
			return fmt.Errorf("read %s: %w", method, err)
		}
		if resp.Error != nil {
			return resp.Error
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	})
}

func (c *wsClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
