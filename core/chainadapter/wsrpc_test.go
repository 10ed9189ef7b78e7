package chainadapter

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

// TestWSClientSerializesConcurrentCalls drives many concurrent call()s over
// one wsClient against a slow echo server. Before the round-trip was
// serialized under c.mu, concurrent WriteJSON/ReadJSON on the shared
// gorilla/websocket conn would race (gorilla panics on concurrent
// writers/readers) and responses could be read by the wrong caller; this
// exercises exactly the fan-out core/liquidityingest drives through a
// single SubtensorAdapter.
func TestWSClientSerializesConcurrentCalls(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			time.Sleep(2 * time.Millisecond)
			result, _ := json.Marshal(map[string]uint64{"echo": req.ID})
			if err := conn.WriteJSON(wsResponse{ID: req.ID, Result: result}); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := newWSClient(url, nil)
	defer c.Close()

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	echoed := make([]uint64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out struct {
				Echo uint64 `json:"echo"`
			}
			errs[i] = c.call(context.Background(), "ping", nil, &out)
			echoed[i] = out.Echo
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
		if seen[echoed[i]] {
			t.Fatalf("id %d echoed back to more than one caller", echoed[i])
		}
		seen[echoed[i]] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct echoed ids, got %d", n, len(seen))
	}
}
