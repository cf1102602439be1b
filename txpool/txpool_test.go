package txpool

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tmlibs/log"

	"github.com/demiurge-chain/demiurge/types"
)

func tx(nonce uint64) *types.Transaction {
	return &types.Transaction{Nonce: nonce, ModuleID: "m", CallID: "c"}
}

func TestAddAndPendingOrder(t *testing.T) {
	tp := NewTxPool(10, log.NewNopLogger())
	for i := uint64(1); i <= 3; i++ {
		_, err := tp.Add(tx(i))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, tp.Len())

	pending := tp.Pending(0)
	require.Len(t, pending, 3)
	for i, p := range pending {
		assert.Equal(t, uint64(i+1), p.Nonce)
	}

	limited := tp.Pending(2)
	require.Len(t, limited, 2)
	assert.Equal(t, uint64(2), limited[1].Nonce)
}

func TestDuplicate(t *testing.T) {
	tp := NewTxPool(10, log.NewNopLogger())
	hash, err := tp.Add(tx(1))
	require.NoError(t, err)
	assert.True(t, tp.Has(hash))

	again, err := tp.Add(tx(1))
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.Equal(t, hash, again)
	assert.Equal(t, 1, tp.Len())
}

func TestCapacity(t *testing.T) {
	tp := NewTxPool(2, log.NewNopLogger())
	_, err := tp.Add(tx(1))
	require.NoError(t, err)
	_, err = tp.Add(tx(2))
	require.NoError(t, err)

	_, err = tp.Add(tx(3))
	assert.True(t, errors.Is(err, ErrPoolFull))

	tp.Remove([]types.Hash{tx(1).Hash()})
	_, err = tp.Add(tx(3))
	assert.NoError(t, err)
}

func TestRemoveKeepsOrder(t *testing.T) {
	tp := NewTxPool(10, log.NewNopLogger())
	for i := uint64(1); i <= 5; i++ {
		_, err := tp.Add(tx(i))
		require.NoError(t, err)
	}

	tp.Remove([]types.Hash{tx(2).Hash(), tx(4).Hash(), types.Sum([]byte("unknown"))})
	assert.Equal(t, 3, tp.Len())
	assert.False(t, tp.Has(tx(2).Hash()))

	var nonces []uint64
	for _, p := range tp.Pending(0) {
		nonces = append(nonces, p.Nonce)
	}
	assert.Equal(t, []uint64{1, 3, 5}, nonces)

	tp.Remove(nil)
	assert.Equal(t, 3, tp.Len())
}
