package chain

import (
	"github.com/pkg/errors"

	"github.com/demiurge-chain/demiurge/statedb"
)

var ErrRollbackTooFar = errors.New("cannot roll back past genesis")

// Rollback removes the top n blocks and their state changes. Every block,
// genesis included, is committed as exactly one state db transaction, so
// rolling back n transactions restores the head, the block store and the
// module state of the new tip together. The node must not be running.
func Rollback(sdb *statedb.StateDB, n int) (*Head, error) {
	head, err := ReadHead(sdb)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, errors.Wrap(ErrMissingBlock, "no chain head")
	}
	if n < 1 || uint64(n) > head.Height {
		return nil, errors.Wrapf(ErrRollbackTooFar, "head %d, requested %d", head.Height, n)
	}
	if last := sdb.LastTransactionID(); last != head.Height+1 {
		return nil, errors.Errorf("state db is at transaction %d, expected %d for head %d", last, head.Height+1, head.Height)
	}

	if err := sdb.Rollback(n); err != nil {
		return nil, err
	}
	return ReadHead(sdb)
}
