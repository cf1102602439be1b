package node

import (
	"context"
	"crypto/ed25519"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tmlibs/log"

	"github.com/demiurge-chain/demiurge/chain"
	"github.com/demiurge-chain/demiurge/common/statedbhelper"
	"github.com/demiurge-chain/demiurge/forge"
	"github.com/demiurge-chain/demiurge/runtime"
	"github.com/demiurge-chain/demiurge/runtime/avatars"
	"github.com/demiurge-chain/demiurge/statedb"
	"github.com/demiurge-chain/demiurge/txpool"
	"github.com/demiurge-chain/demiurge/types"
)

func testConfig() Config {
	return Config{
		ChainID:          "test",
		Target:           types.MaxTarget(),
		GenesisTimestamp: 1000,
		MaxBlockTxs:      100,
		TxPoolSize:       100,
		VerifySignatures: true,
		MiningWorkers:    2,
	}
}

func newNodeWith(t *testing.T, cfg Config, sdb *statedb.StateDB) *Node {
	engine, err := forge.New(forge.Config{MemoryCostKiB: 64, TimeCost: 1, Lanes: 1})
	require.NoError(t, err)
	registry, err := runtime.NewRegistry(log.NewNopLogger(), avatars.New())
	require.NoError(t, err)

	n, err := New(cfg, sdb, engine, registry, log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(n.Stop)
	return n
}

func newNode(t *testing.T) *Node {
	sdb, err := statedb.OpenInMemory(10)
	require.NoError(t, err)
	t.Cleanup(func() { sdb.Close() })
	return newNodeWith(t, testConfig(), sdb)
}

func newKey(seed byte) ed25519.PrivateKey {
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	return ed25519.NewKeyFromSeed(s)
}

func signedTx(t *testing.T, priv ed25519.PrivateKey, nonce uint64, moduleID, callID string) *types.Transaction {
	tx := &types.Transaction{Nonce: nonce, ModuleID: moduleID, CallID: callID}
	require.NoError(t, tx.Sign(priv))
	return tx
}

func claim(t *testing.T, priv ed25519.PrivateKey, nonce uint64) *types.Transaction {
	return signedTx(t, priv, nonce, avatars.ModuleID, avatars.CallClaimArchon)
}

func isArchon(t *testing.T, n *Node, addr types.Address) bool {
	var archon bool
	require.NoError(t, n.View(func(r statedb.Reader) error {
		var err error
		archon, err = avatars.IsArchon(r, addr)
		return err
	}))
	return archon
}

func TestFreshNode(t *testing.T) {
	n := newNode(t)

	info, err := n.ChainInfo()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), info.Height)
	assert.Equal(t, "test", info.ChainID)
	assert.Equal(t, 0, info.Pending)

	genesis, err := n.GetBlockByHeight(0)
	require.NoError(t, err)
	require.NotNil(t, genesis)
	assert.Equal(t, info.HeadHash, genesis.Hash())
	assert.Equal(t, uint64(1000), genesis.Header.Timestamp)
	assert.True(t, genesis.Header.PrevHash.IsZero())

	beyond, err := n.GetBlockByHeight(1)
	require.NoError(t, err)
	assert.Nil(t, beyond)
}

func TestSubmitAdmission(t *testing.T) {
	n := newNode(t)
	priv := newKey(1)

	unsigned := &types.Transaction{From: types.AddressFromPublicKey(priv.Public().(ed25519.PublicKey)), Nonce: 1, ModuleID: avatars.ModuleID}
	_, err := n.SubmitTransaction(unsigned)
	assert.True(t, errors.Is(err, ErrInvalidSignature))

	tampered := claim(t, priv, 1)
	tampered.Fee = 10
	_, err = n.SubmitTransaction(tampered)
	assert.True(t, errors.Is(err, ErrInvalidSignature))

	tx := claim(t, priv, 1)
	hash, err := n.SubmitTransaction(tx)
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), hash)

	_, err = n.SubmitRawTransaction(tx.Encode())
	assert.True(t, errors.Is(err, txpool.ErrDuplicate))

	_, err = n.SubmitTransaction(claim(t, priv, 0))
	assert.True(t, errors.Is(err, ErrNonceTooLow))

	_, err = n.SubmitRawTransaction([]byte{0x01, 0x02})
	assert.True(t, errors.Is(err, types.ErrInvalidEncoding))

	info, err := n.ChainInfo()
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pending)
}

func TestSubmitWithoutSignatureCheck(t *testing.T) {
	sdb, err := statedb.OpenInMemory(10)
	require.NoError(t, err)
	defer sdb.Close()
	cfg := testConfig()
	cfg.VerifySignatures = false
	n := newNodeWith(t, cfg, sdb)

	addr := types.Address{1}
	_, err = n.SubmitTransaction(&types.Transaction{From: addr, Nonce: 1, ModuleID: avatars.ModuleID, CallID: avatars.CallClaimArchon})
	require.NoError(t, err)

	_, err = n.ProduceBlock(context.Background())
	require.NoError(t, err)
	assert.True(t, isArchon(t, n, addr))
}

func TestProduceBlock(t *testing.T) {
	n := newNode(t)
	priv := newKey(1)
	addr := types.AddressFromPublicKey(priv.Public().(ed25519.PublicKey))

	_, err := n.SubmitTransaction(claim(t, priv, 1))
	require.NoError(t, err)
	assert.False(t, isArchon(t, n, addr))

	block, err := n.ProduceBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), block.Header.Height)
	require.Len(t, block.Transactions, 1)
	assert.True(t, isArchon(t, n, addr))

	info, err := n.ChainInfo()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.Height)
	assert.Equal(t, block.Hash(), info.HeadHash)
	assert.Equal(t, 0, info.Pending)

	genesis, err := n.GetBlockByHeight(0)
	require.NoError(t, err)
	assert.Equal(t, genesis.Hash(), block.Header.PrevHash)
	assert.NotEqual(t, genesis.Header.StateRoot, block.Header.StateRoot)
	assert.True(t, n.engine.Verify(&block.Header))

	stored, err := n.GetBlockByHeight(1)
	require.NoError(t, err)
	assert.Equal(t, block.Hash(), stored.Hash())

	// the committed nonce now rejects a replay at admission
	_, err = n.SubmitTransaction(claim(t, priv, 1))
	assert.True(t, errors.Is(err, ErrNonceTooLow))
}

func TestProduceDropsFailingTransactions(t *testing.T) {
	n := newNode(t)
	good := newKey(1)
	bad := newKey(2)

	_, err := n.SubmitTransaction(signedTx(t, bad, 1, "no_such_module", "call"))
	require.NoError(t, err)
	_, err = n.SubmitTransaction(signedTx(t, bad, 2, avatars.ModuleID, "no_such_call"))
	require.NoError(t, err)
	// nonce gap: accepted at admission, fails at execution
	_, err = n.SubmitTransaction(claim(t, good, 2))
	require.NoError(t, err)
	_, err = n.SubmitTransaction(claim(t, good, 1))
	require.NoError(t, err)

	block, err := n.ProduceBlock(context.Background())
	require.NoError(t, err)
	require.Len(t, block.Transactions, 1)
	assert.Equal(t, uint64(1), block.Transactions[0].Nonce)

	info, err := n.ChainInfo()
	require.NoError(t, err)
	assert.Equal(t, 0, info.Pending)

	var nonce uint64
	require.NoError(t, n.View(func(r statedb.Reader) error {
		var err error
		nonce, err = statedbhelper.GetAccountNonce(r, block.Transactions[0].From)
		return err
	}))
	assert.Equal(t, uint64(1), nonce)
}

// A failed transaction does not consume its nonce, so the sender's later
// transactions in the same block fail the nonce check as well.
func TestProduceDropsLaterNoncesAfterFailure(t *testing.T) {
	n := newNode(t)
	priv := newKey(3)
	addr := types.AddressFromPublicKey(priv.Public().(ed25519.PublicKey))

	_, err := n.SubmitTransaction(signedTx(t, priv, 1, avatars.ModuleID, "no_such_call"))
	require.NoError(t, err)
	_, err = n.SubmitTransaction(claim(t, priv, 2))
	require.NoError(t, err)

	block, err := n.ProduceBlock(context.Background())
	require.NoError(t, err)
	assert.Empty(t, block.Transactions)

	info, err := n.ChainInfo()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.Height)
	assert.Equal(t, 0, info.Pending)
	assert.False(t, isArchon(t, n, addr))

	var nonce uint64
	require.NoError(t, n.View(func(r statedb.Reader) error {
		var err error
		nonce, err = statedbhelper.GetAccountNonce(r, addr)
		return err
	}))
	assert.Equal(t, uint64(0), nonce)
}

func TestEmptyBlocksKeepStateRoot(t *testing.T) {
	n := newNode(t)
	var prev *types.Block
	for i := 0; i < 3; i++ {
		block, err := n.ProduceBlock(context.Background())
		require.NoError(t, err)
		assert.Empty(t, block.Transactions)
		assert.Equal(t, uint64(i+1), block.Header.Height)
		if prev != nil {
			assert.Equal(t, prev.Hash(), block.Header.PrevHash)
			assert.Equal(t, prev.Header.StateRoot, block.Header.StateRoot)
			assert.GreaterOrEqual(t, block.Header.Timestamp, prev.Header.Timestamp)
		}
		prev = block
	}
}

func TestProduceCancelled(t *testing.T) {
	sdb, err := statedb.OpenInMemory(10)
	require.NoError(t, err)
	defer sdb.Close()
	cfg := testConfig()
	cfg.Target = types.Target{}
	n := newNodeWith(t, cfg, sdb)

	priv := newKey(1)
	_, err = n.SubmitTransaction(claim(t, priv, 1))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = n.ProduceBlock(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	info, err := n.ChainInfo()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), info.Height)
	assert.Equal(t, 1, info.Pending)
	assert.False(t, isArchon(t, n, types.AddressFromPublicKey(priv.Public().(ed25519.PublicKey))))

	// the state transaction was released
	trans, err := sdb.NewTransaction()
	require.NoError(t, err)
	trans.Rollback()
}

func TestImportBlock(t *testing.T) {
	producer := newNode(t)
	follower := newNode(t)
	priv := newKey(1)
	addr := types.AddressFromPublicKey(priv.Public().(ed25519.PublicKey))

	_, err := producer.SubmitTransaction(claim(t, priv, 1))
	require.NoError(t, err)
	block, err := producer.ProduceBlock(context.Background())
	require.NoError(t, err)

	// the follower also has it pending; import clears it
	_, err = follower.SubmitTransaction(claim(t, priv, 1))
	require.NoError(t, err)

	require.NoError(t, follower.ImportBlock(block))
	pi, err := producer.ChainInfo()
	require.NoError(t, err)
	fi, err := follower.ChainInfo()
	require.NoError(t, err)
	assert.Equal(t, pi.HeadHash, fi.HeadHash)
	assert.Equal(t, 0, fi.Pending)
	assert.True(t, isArchon(t, follower, addr))

	err = follower.ImportBlock(block)
	assert.True(t, errors.Is(err, chain.ErrInvalidHeight))
}

func TestImportRejectsInvalidBlocks(t *testing.T) {
	producer := newNode(t)
	priv := newKey(1)
	addr := types.AddressFromPublicKey(priv.Public().(ed25519.PublicKey))

	_, err := producer.SubmitTransaction(claim(t, priv, 1))
	require.NoError(t, err)
	block, err := producer.ProduceBlock(context.Background())
	require.NoError(t, err)

	reseal := func(t *testing.T, b *types.Block) *types.Block {
		sealed, err := producer.engine.Mine(context.Background(), b.Header, 1)
		require.NoError(t, err)
		b.Header = sealed
		return b
	}
	copyBlock := func() *types.Block {
		b := *block
		b.Transactions = append([]*types.Transaction(nil), block.Transactions...)
		return &b
	}

	cases := map[string]struct {
		block func(t *testing.T) *types.Block
		err   error
	}{
		"prev hash": {func(t *testing.T) *types.Block {
			b := copyBlock()
			b.Header.PrevHash = types.Sum([]byte("elsewhere"))
			return reseal(t, b)
		}, chain.ErrInvalidPrevHash},
		"state root": {func(t *testing.T) *types.Block {
			b := copyBlock()
			b.Header.StateRoot = types.Sum([]byte("wrong"))
			return reseal(t, b)
		}, chain.ErrStateRootMismatch},
		"signature": {func(t *testing.T) *types.Block {
			b := copyBlock()
			forged := *b.Transactions[0]
			forged.Fee = 99
			b.Transactions[0] = &forged
			return b
		}, ErrInvalidSignature},
		"failing transaction": {func(t *testing.T) *types.Block {
			b := copyBlock()
			b.Transactions = append(b.Transactions, signedTx(t, priv, 5, avatars.ModuleID, avatars.CallClaimArchon))
			return reseal(t, b)
		}, statedbhelper.ErrInvalidNonce},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			follower := newNode(t)
			err := follower.ImportBlock(tc.block(t))
			assert.True(t, errors.Is(err, tc.err), "%v", err)

			info, err := follower.ChainInfo()
			require.NoError(t, err)
			assert.Equal(t, uint64(0), info.Height)
			assert.False(t, isArchon(t, follower, addr))
		})
	}
}

func TestImportVerifiesSignaturesWhenAdmissionDoesNot(t *testing.T) {
	cfg := testConfig()
	cfg.VerifySignatures = false
	newUncheckedNode := func(t *testing.T) *Node {
		sdb, err := statedb.OpenInMemory(10)
		require.NoError(t, err)
		t.Cleanup(func() { sdb.Close() })
		return newNodeWith(t, cfg, sdb)
	}

	var victim types.Address
	for i := range victim {
		victim[i] = 0xaa
	}
	forged := &types.Transaction{
		From:      victim,
		Nonce:     1,
		ModuleID:  avatars.ModuleID,
		CallID:    avatars.CallClaimArchon,
		Signature: []byte{1, 2, 3},
	}

	producer := newUncheckedNode(t)
	_, err := producer.SubmitTransaction(forged)
	require.NoError(t, err)
	block, err := producer.ProduceBlock(context.Background())
	require.NoError(t, err)
	require.Len(t, block.Transactions, 1)

	follower := newUncheckedNode(t)
	err = follower.ImportBlock(block)
	assert.True(t, errors.Is(err, ErrInvalidSignature), "%v", err)

	info, err := follower.ChainInfo()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), info.Height)
	assert.False(t, isArchon(t, follower, victim))
}

func TestImportRejectsBadPoW(t *testing.T) {
	sdb, err := statedb.OpenInMemory(10)
	require.NoError(t, err)
	defer sdb.Close()
	cfg := testConfig()
	// about one nonce in 256 qualifies
	cfg.Target = types.MaxTarget()
	cfg.Target[0] = 0
	producer := newNodeWith(t, cfg, sdb)

	block, err := producer.ProduceBlock(context.Background())
	require.NoError(t, err)

	sdb2, err := statedb.OpenInMemory(10)
	require.NoError(t, err)
	defer sdb2.Close()
	follower := newNodeWith(t, cfg, sdb2)

	bad := *block
	for nonce := uint64(0); ; nonce++ {
		bad.Header.Nonce = nonce
		if !producer.engine.Verify(&bad.Header) {
			break
		}
	}
	err = follower.ImportBlock(&bad)
	assert.True(t, errors.Is(err, chain.ErrInvalidPoW), "%v", err)

	require.NoError(t, follower.ImportBlock(block))
}

func TestConcurrentSubmitAndProduce(t *testing.T) {
	n := newNode(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(seed byte) {
			defer wg.Done()
			priv := newKey(seed)
			for nonce := uint64(1); nonce <= 3; nonce++ {
				_, err := n.SubmitTransaction(claim(t, priv, nonce))
				assert.NoError(t, err)
			}
		}(byte(i + 1))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			_, err := n.ProduceBlock(context.Background())
			assert.NoError(t, err)
			_, err = n.ChainInfo()
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	for {
		info, err := n.ChainInfo()
		require.NoError(t, err)
		if info.Pending == 0 {
			break
		}
		_, err = n.ProduceBlock(context.Background())
		require.NoError(t, err)
	}

	total := 0
	info, err := n.ChainInfo()
	require.NoError(t, err)
	for h := uint64(1); h <= info.Height; h++ {
		block, err := n.GetBlockByHeight(h)
		require.NoError(t, err)
		total += len(block.Transactions)
	}
	assert.Equal(t, 24, total)
}

func TestRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	sdb, err := statedb.Open(path, 10)
	require.NoError(t, err)

	cfg := testConfig()
	engine, err := forge.New(forge.Config{MemoryCostKiB: 64, TimeCost: 1, Lanes: 1})
	require.NoError(t, err)
	registry, err := runtime.NewRegistry(log.NewNopLogger(), avatars.New())
	require.NoError(t, err)

	n, err := New(cfg, sdb, engine, registry, log.NewNopLogger())
	require.NoError(t, err)
	block, err := n.ProduceBlock(context.Background())
	require.NoError(t, err)
	n.Stop()
	require.NoError(t, sdb.Close())

	sdb, err = statedb.Open(path, 10)
	require.NoError(t, err)
	defer sdb.Close()

	n, err = New(cfg, sdb, engine, registry, log.NewNopLogger())
	require.NoError(t, err)
	info, err := n.ChainInfo()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.Height)
	assert.Equal(t, block.Hash(), info.HeadHash)
	n.Stop()

	other := cfg
	other.ChainID = "other"
	_, err = New(other, sdb, engine, registry, log.NewNopLogger())
	assert.True(t, errors.Is(err, ErrChainIDMismatch))
}

func TestStop(t *testing.T) {
	n := newNode(t)
	n.Stop()

	_, err := n.ChainInfo()
	assert.Equal(t, ErrNodeClosed, err)
	_, err = n.SubmitTransaction(claim(t, newKey(1), 1))
	assert.Equal(t, ErrNodeClosed, err)
	_, err = n.ProduceBlock(context.Background())
	assert.Equal(t, ErrNodeClosed, err)
}
