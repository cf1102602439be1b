package node

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/demiurge-chain/demiurge/chain"
	"github.com/demiurge-chain/demiurge/statedb"
	"github.com/demiurge-chain/demiurge/types"
)

// ProduceBlock builds, mines and commits the next block from the pending
// transactions. Transactions that fail to execute are left out of the
// block and dropped from the pool. Cancelling ctx aborts mining and leaves
// the chain and the pool untouched.
func (n *Node) ProduceBlock(ctx context.Context) (*types.Block, error) {
	n.produceMtx.Lock()
	defer n.produceMtx.Unlock()

	var (
		parent  types.BlockHeader
		pending []*types.Transaction
	)
	if err := n.do(func(st *chainState) {
		parent = *st.head
		pending = st.pool.Pending(n.cfg.MaxBlockTxs)
	}); err != nil {
		return nil, err
	}

	trans, err := n.sdb.NewTransaction()
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			trans.Rollback()
		}
	}()

	height := parent.Height + 1
	included := make([]*types.Transaction, 0, len(pending))
	txHashes := make([]types.Hash, 0, len(pending))
	writeSets := make([][]byte, 0, len(pending))
	var dropped []types.Hash
	for _, tx := range pending {
		ws, err := n.registry.DispatchTx(trans, tx, height)
		if err != nil {
			n.logger.Info("Dropped transaction", "hash", tx.Hash(), "from", tx.From, "err", err)
			dropped = append(dropped, tx.Hash())
			continue
		}
		included = append(included, tx)
		txHashes = append(txHashes, tx.Hash())
		writeSets = append(writeSets, ws)
	}

	timestamp := uint64(time.Now().Unix())
	if timestamp < parent.Timestamp {
		timestamp = parent.Timestamp
	}
	header := types.BlockHeader{
		Height:           height,
		PrevHash:         parent.Hash(),
		StateRoot:        chain.NextStateRoot(parent.StateRoot, txHashes, writeSets),
		Timestamp:        timestamp,
		DifficultyTarget: n.cfg.Target,
	}

	start := time.Now()
	sealed, err := n.engine.Mine(ctx, header, n.cfg.MiningWorkers)
	if err != nil {
		return nil, errors.Wrapf(err, "mine block %d", height)
	}
	n.logger.Debug("Mined block", "height", height, "nonce", sealed.Nonce, "elapsed", time.Since(start))

	block := &types.Block{Header: sealed, Transactions: included}
	if err := n.commitBlock(trans, block, parent.Hash(), dropped); err != nil {
		return nil, err
	}
	committed = true
	return block, nil
}

// ImportBlock applies a block produced elsewhere. The header is validated
// against the current head and every signature checked before any
// transaction runs; a transaction failure or a state root mismatch rejects
// the whole block.
func (n *Node) ImportBlock(block *types.Block) error {
	n.produceMtx.Lock()
	defer n.produceMtx.Unlock()

	var parent types.BlockHeader
	if err := n.do(func(st *chainState) {
		parent = *st.head
	}); err != nil {
		return err
	}

	if err := chain.ValidateHeader(n.engine, &parent, &block.Header, n.cfg.Target); err != nil {
		return err
	}
	// Signatures are always checked here; cfg.VerifySignatures only governs
	// admission to the pool.
	for i, tx := range block.Transactions {
		if !tx.VerifySignature() {
			return errors.Wrapf(ErrInvalidSignature, "transaction %d", i)
		}
	}

	trans, err := n.sdb.NewTransaction()
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			trans.Rollback()
		}
	}()

	txHashes := make([]types.Hash, 0, len(block.Transactions))
	writeSets := make([][]byte, 0, len(block.Transactions))
	for i, tx := range block.Transactions {
		ws, err := n.registry.DispatchTx(trans, tx, block.Header.Height)
		if err != nil {
			return errors.Wrapf(err, "transaction %d", i)
		}
		txHashes = append(txHashes, tx.Hash())
		writeSets = append(writeSets, ws)
	}
	if root := chain.NextStateRoot(parent.StateRoot, txHashes, writeSets); root != block.Header.StateRoot {
		return errors.Wrapf(chain.ErrStateRootMismatch, "computed %s, header %s", root, block.Header.StateRoot)
	}

	if err := n.commitBlock(trans, block, parent.Hash(), nil); err != nil {
		return err
	}
	committed = true
	return nil
}

// commitBlock stores block as the new tip and commits trans on the actor
// goroutine, so the head, the pool and the state move together.
func (n *Node) commitBlock(trans *statedb.Transaction, block *types.Block, parentHash types.Hash, dropped []types.Hash) error {
	var err error
	doErr := n.do(func(st *chainState) {
		if st.head.Hash() != parentHash {
			err = errors.Wrapf(ErrStaleHead, "block %d built on %s", block.Header.Height, parentHash)
			return
		}

		tip := trans.NewTx()
		if err = chain.WriteTip(tip, block); err != nil {
			tip.Rollback()
			return
		}
		if _, err = tip.Commit(); err != nil {
			return
		}
		if err = trans.Commit(); err != nil {
			return
		}

		st.head = &block.Header
		st.pool.Remove(append(block.TxHashes(), dropped...))
		n.logger.Info("Committed block", "height", block.Header.Height, "hash", block.Hash(),
			"txs", len(block.Transactions), "dropped", len(dropped), "pending", st.pool.Len())
	})
	if doErr != nil {
		return doErr
	}
	return err
}
