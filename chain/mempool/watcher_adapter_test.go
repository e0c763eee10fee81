package mempool

import (
	"context"
	"net/http"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func TestWatcherAdapter_ResolveSpentStatus(t *testing.T) {
	r := testResolver(t, func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`{"spent":false}`))
	})
	adapter := NewWatcherAdapter(r)

	status, err := adapter.ResolveSpentStatus(context.Background(), chainhash.Hash{1}, 0)
	require.NoError(t, err)
	require.False(t, status.Spent)
	require.False(t, status.TxInvalid)
}
