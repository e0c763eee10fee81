package mempool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RetryAttempts = 0
	cfg.RetryDelay = time.Millisecond
	return NewClient(cfg), srv
}

func TestClient_GetCurrentHeight(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/blocks/tip/height", r.URL.Path)
		w.Write([]byte("840000"))
	})

	h, err := c.GetCurrentHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint32(840000), h)
}

func TestClient_GetTransaction(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"txid":"abc","version":2,"vin":[],"vout":[],"status":{"confirmed":true,"block_height":100}}`))
	})

	tx, err := c.GetTransaction(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, "abc", tx.TxID)
	require.True(t, tx.Status.Confirmed)
}

func TestClient_DoRequest_404IsMalformed(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not found"))
	})

	_, err := c.GetTransaction(context.Background(), "missing")
	require.Error(t, err)
}

func TestClient_DoRequest_ServerErrorIsServiceUnavailable(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.GetTransaction(context.Background(), "x")
	require.Error(t, err)
}

func TestClient_GetScripthashTxs_Paginates(t *testing.T) {
	calls := 0
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			page := make([]byte, 0)
			page = append(page, '[')
			for i := 0; i < 25; i++ {
				if i > 0 {
					page = append(page, ',')
				}
				page = append(page, []byte(`{"txid":"tx`+string(rune('a'+i))+`","status":{"confirmed":true}}`)...)
			}
			page = append(page, ']')
			w.Write(page)
			return
		}
		w.Write([]byte(`[{"txid":"last","status":{"confirmed":true}}]`))
	})

	txs, err := c.GetScripthashTxs(context.Background(), "sh")
	require.NoError(t, err)
	require.Len(t, txs, 26)
	require.Equal(t, 2, calls)
}

func TestClient_GetFeeEstimates(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fastestFee":20,"halfHourFee":10,"hourFee":5,"economyFee":2,"minimumFee":1}`))
	})

	fees, err := c.GetFeeEstimates(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(20), fees.FastestFee)
}
