package node

import (
	"github.com/pkg/errors"

	"github.com/demiurge-chain/demiurge/common/statedbhelper"
	"github.com/demiurge-chain/demiurge/types"
)

// SubmitRawTransaction decodes raw and submits the transaction. Malformed
// bytes fail with types.ErrInvalidEncoding.
func (n *Node) SubmitRawTransaction(raw []byte) (types.Hash, error) {
	tx, err := types.DecodeTransaction(raw)
	if err != nil {
		return types.Hash{}, err
	}
	return n.SubmitTransaction(tx)
}

// SubmitTransaction admits tx to the pool. A transaction is rejected when
// its signature does not verify (unless verification is disabled), when
// its nonce is not above the sender's last committed nonce, when an
// identical transaction is already pending, or when the pool is full.
// Nonce gaps are accepted here and enforced at execution.
func (n *Node) SubmitTransaction(tx *types.Transaction) (types.Hash, error) {
	if n.cfg.VerifySignatures && !tx.VerifySignature() {
		return types.Hash{}, errors.Wrapf(ErrInvalidSignature, "from %s", tx.From)
	}

	var (
		hash types.Hash
		err  error
	)
	if doErr := n.do(func(st *chainState) {
		var last uint64
		if last, err = statedbhelper.GetAccountNonce(n.sdb, tx.From); err != nil {
			return
		}
		if tx.Nonce <= last {
			err = errors.Wrapf(ErrNonceTooLow, "address %s nonce %d, last committed %d", tx.From, tx.Nonce, last)
			return
		}
		hash, err = st.pool.Add(tx)
	}); doErr != nil {
		return types.Hash{}, doErr
	}
	return hash, err
}
