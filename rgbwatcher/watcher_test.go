package rgbwatcher

import (
	"context"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

type fakeDeriver struct{}

func (fakeDeriver) DeriveScript(app, index uint32) ([]byte, error) {
	return []byte(fmt.Sprintf("script-%d-%d", app, index)), nil
}

func (fakeDeriver) DeriveInternalKey(app, index uint32) (*btcec.PublicKey, error) {
	return nil, nil
}

type fakeResolver struct {
	byScript map[string]UtxoCandidate
	spent    map[chainhash.Hash]SpentStatus
}

func (r *fakeResolver) ResolveUtxos(_ context.Context, scripts [][]byte) ([]UtxoCandidate, error) {
	var out []UtxoCandidate
	for _, s := range scripts {
		if u, ok := r.byScript[string(s)]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeResolver) ResolveSpentStatus(_ context.Context, txid chainhash.Hash, _ uint32) (SpentStatus, error) {
	return r.spent[txid], nil
}

func TestWatcher_NextAddressIncrementsIndex(t *testing.T) {
	w := New("w1", fakeDeriver{}, &fakeResolver{})

	_, idx0, err := w.NextAddress(AppBitcoinReceive)
	require.NoError(t, err)
	require.Equal(t, uint32(0), idx0)

	_, idx1, err := w.NextAddress(AppBitcoinReceive)
	require.NoError(t, err)
	require.Equal(t, uint32(1), idx1)
}

func TestWatcher_RecordAndLookupTapretTweak(t *testing.T) {
	w := New("w1", fakeDeriver{}, &fakeResolver{})
	tweak := [32]byte{9}
	w.RecordTapretTweak(AppRGB20, 3, tweak)

	got, ok := w.TapretTweak(AppRGB20, 3)
	require.True(t, ok)
	require.Equal(t, tweak, *got)

	_, ok = w.TapretTweak(AppRGB20, 4)
	require.False(t, ok)
}

func TestWatcher_SyncDiscoversUtxosAndAdvancesIndex(t *testing.T) {
	txid := chainhash.Hash{1}
	resolver := &fakeResolver{
		byScript: map[string]UtxoCandidate{
			"script-20-2": {Txid: txid, Vout: 0, Value: 1000, Confirmed: true, BlockHeight: 50, PkScript: []byte("script-20-2")},
		},
		spent: map[chainhash.Hash]SpentStatus{},
	}
	w := New("w1", fakeDeriver{}, resolver)

	require.NoError(t, w.Sync(context.Background(), AppRGB20))

	utxos, err := w.NextUtxos(context.Background(), AppRGB20)
	require.NoError(t, err)
	require.Len(t, utxos, 1)
	require.Equal(t, int64(1000), utxos[0].Value)

	_, next, err := w.NextAddress(AppRGB20)
	require.NoError(t, err)
	require.Equal(t, uint32(3), next)
}

func TestWatcher_NextUtxosExcludesSpentValid(t *testing.T) {
	txid := chainhash.Hash{1}
	resolver := &fakeResolver{
		byScript: map[string]UtxoCandidate{
			"script-20-0": {Txid: txid, Vout: 0, Value: 1000, Confirmed: true, BlockHeight: 50, PkScript: []byte("script-20-0")},
		},
		spent: map[chainhash.Hash]SpentStatus{txid: {Spent: true, TxInvalid: false}},
	}
	w := New("w1", fakeDeriver{}, resolver)
	require.NoError(t, w.Sync(context.Background(), AppRGB20))

	utxos, err := w.NextUtxos(context.Background(), AppRGB20)
	require.NoError(t, err)
	require.Empty(t, utxos)
}

func TestWatcher_NextUtxosIncludesSpentInvalid(t *testing.T) {
	txid := chainhash.Hash{1}
	resolver := &fakeResolver{
		byScript: map[string]UtxoCandidate{
			"script-20-0": {Txid: txid, Vout: 0, Value: 1000, Confirmed: true, BlockHeight: 50, PkScript: []byte("script-20-0")},
		},
		spent: map[chainhash.Hash]SpentStatus{txid: {Spent: true, TxInvalid: true}},
	}
	w := New("w1", fakeDeriver{}, resolver)
	require.NoError(t, w.Sync(context.Background(), AppRGB20))

	utxos, err := w.NextUtxos(context.Background(), AppRGB20)
	require.NoError(t, err)
	require.Len(t, utxos, 1)
}

func TestWatcher_NextUtxoReturnsNilWhenEmpty(t *testing.T) {
	w := New("w1", fakeDeriver{}, &fakeResolver{})
	u, err := w.NextUtxo(context.Background(), AppRGB20)
	require.NoError(t, err)
	require.Nil(t, u)
}
