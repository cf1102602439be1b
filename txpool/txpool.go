// Package txpool holds admitted transactions until a block includes them.
package txpool

import (
	"github.com/pkg/errors"
	"github.com/tendermint/tmlibs/log"

	"github.com/demiurge-chain/demiurge/types"
)

var (
	ErrDuplicate = errors.New("transaction already pending")
	ErrPoolFull  = errors.New("transaction pool is full")
)

// TxPool keeps pending transactions in arrival order. It is not safe for
// concurrent use; the node's actor goroutine owns it.
type TxPool interface {
	Add(tx *types.Transaction) (types.Hash, error)
	Has(hash types.Hash) bool
	Pending(limit int) []*types.Transaction
	Remove(hashes []types.Hash)
	Len() int
}

type txPool struct {
	maxSize int
	order   []types.Hash
	txs     map[types.Hash]*types.Transaction
	logger  log.Logger
}

var _ TxPool = (*txPool)(nil)

func NewTxPool(maxSize int, l log.Logger) TxPool {
	return &txPool{
		maxSize: maxSize,
		txs:     make(map[types.Hash]*types.Transaction),
		logger:  l,
	}
}

// Add admits tx unless an identical transaction is pending or the pool is
// at capacity.
func (tp *txPool) Add(tx *types.Transaction) (types.Hash, error) {
	hash := tx.Hash()
	if _, ok := tp.txs[hash]; ok {
		return hash, errors.Wrapf(ErrDuplicate, "%s", hash)
	}
	if len(tp.txs) >= tp.maxSize {
		return hash, errors.Wrapf(ErrPoolFull, "%d transactions", len(tp.txs))
	}
	tp.txs[hash] = tx
	tp.order = append(tp.order, hash)
	tp.logger.Debug("Added transaction", "hash", hash, "from", tx.From, "nonce", tx.Nonce)
	return hash, nil
}

func (tp *txPool) Has(hash types.Hash) bool {
	_, ok := tp.txs[hash]
	return ok
}

// Pending returns up to limit transactions, oldest first. A limit of zero
// or less returns all of them.
func (tp *txPool) Pending(limit int) []*types.Transaction {
	n := len(tp.order)
	if limit > 0 && limit < n {
		n = limit
	}
	txs := make([]*types.Transaction, 0, n)
	for _, hash := range tp.order[:n] {
		txs = append(txs, tp.txs[hash])
	}
	return txs
}

// Remove drops the given transactions; unknown hashes are ignored.
func (tp *txPool) Remove(hashes []types.Hash) {
	removed := 0
	for _, hash := range hashes {
		if _, ok := tp.txs[hash]; ok {
			delete(tp.txs, hash)
			removed++
		}
	}
	if removed == 0 {
		return
	}

	order := tp.order[:0]
	for _, hash := range tp.order {
		if _, ok := tp.txs[hash]; ok {
			order = append(order, hash)
		}
	}
	tp.order = order
	tp.logger.Debug("Removed transactions", "count", removed, "left", len(tp.txs))
}

func (tp *txPool) Len() int {
	return len(tp.txs)
}
