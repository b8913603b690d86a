package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcServer answers eth_blockNumber after failing the first failures requests.
func rpcServer(t *testing.T, failures int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= failures {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}

		var req struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "0x10"})
	}))
	t.Cleanup(srv.Close)

	return srv, &hits
}

func TestWaitForRPC(t *testing.T) {
	t.Run("succeeds once the node answers", func(t *testing.T) {
		srv, hits := rpcServer(t, 2)

		err := waitForRPC(context.Background(), srv.URL, 5, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("gives up after the attempt budget", func(t *testing.T) {
		srv, hits := rpcServer(t, 100)

		err := waitForRPC(context.Background(), srv.URL, 3, time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timed out waiting for RPC")
		assert.Equal(t, int32(3), hits.Load())
	})

	t.Run("stops when the context ends", func(t *testing.T) {
		srv, _ := rpcServer(t, 100)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := waitForRPC(ctx, srv.URL, 3, time.Hour)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
