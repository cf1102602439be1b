package chain

import (
	"github.com/pkg/errors"

	"github.com/demiurge-chain/demiurge/forge"
	"github.com/demiurge-chain/demiurge/types"
)

var (
	ErrInvalidHeight     = errors.New("invalid height")
	ErrInvalidPrevHash   = errors.New("invalid prev hash")
	ErrInvalidTimestamp  = errors.New("timestamp before parent")
	ErrInvalidTarget     = errors.New("unexpected difficulty target")
	ErrInvalidPoW        = errors.New("proof of work does not meet target")
	ErrStateRootMismatch = errors.New("state root mismatch")
)

// ValidateHeader checks linkage to parent, the fixed difficulty target and
// the proof of work, cheapest check first.
func ValidateHeader(engine *forge.Engine, parent, header *types.BlockHeader, target types.Target) error {
	if header.Height != parent.Height+1 {
		return errors.Wrapf(ErrInvalidHeight, "expected %d, got %d", parent.Height+1, header.Height)
	}
	if parentHash := parent.Hash(); header.PrevHash != parentHash {
		return errors.Wrapf(ErrInvalidPrevHash, "expected %s, got %s", parentHash, header.PrevHash)
	}
	if header.Timestamp < parent.Timestamp {
		return errors.Wrapf(ErrInvalidTimestamp, "%d < %d", header.Timestamp, parent.Timestamp)
	}
	if header.DifficultyTarget != target {
		return errors.Wrapf(ErrInvalidTarget, "expected %s, got %s", target, header.DifficultyTarget)
	}
	if !engine.Verify(header) {
		return errors.Wrapf(ErrInvalidPoW, "height %d nonce %d", header.Height, header.Nonce)
	}
	return nil
}

// NextStateRoot chains each transaction's hash and write set onto the
// parent root. A block without transactions keeps the parent root.
func NextStateRoot(parent types.Hash, txHashes []types.Hash, writeSets [][]byte) types.Hash {
	if len(txHashes) == 0 {
		return parent
	}
	parts := make([][]byte, 0, len(txHashes)+1)
	parts = append(parts, parent.Bytes())
	for i, h := range txHashes {
		leaf := types.Sum(h.Bytes(), writeSets[i])
		parts = append(parts, leaf.Bytes())
	}
	return types.Sum(parts...)
}
