// Package chain persists blocks and the chain head in the state db and
// checks that a block extends its parent.
package chain

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/demiurge-chain/demiurge/common/statedbhelper"
	"github.com/demiurge-chain/demiurge/statedb"
	"github.com/demiurge-chain/demiurge/types"
)

// ErrMissingBlock means a height at or below the head has no stored block.
var ErrMissingBlock = errors.New("block missing from store")

// Head is the tip of the chain.
type Head struct {
	Height uint64
	Hash   types.Hash
}

// Genesis is height 0 with a zero parent and state root. It is not mined.
func Genesis(timestamp uint64, target types.Target) *types.Block {
	return &types.Block{
		Header: types.BlockHeader{
			Height:           0,
			Timestamp:        timestamp,
			DifficultyTarget: target,
		},
		Transactions: []*types.Transaction{},
	}
}

func WriteBlock(w statedbhelper.Writer, block *types.Block) error {
	return w.Set(statedbhelper.KeyOfBlock(block.Header.Height), snappy.Encode(nil, block.Encode()))
}

// ReadBlock returns nil if no block is stored at height.
func ReadBlock(r statedb.Reader, height uint64) (*types.Block, error) {
	value, err := r.Get(statedbhelper.KeyOfBlock(height))
	if err != nil || value == nil {
		return nil, err
	}
	raw, err := snappy.Decode(nil, value)
	if err != nil {
		return nil, errors.Wrapf(err, "decompress block %d", height)
	}
	block, err := types.DecodeBlock(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "block %d", height)
	}
	return block, nil
}

func WriteHead(w statedbhelper.Writer, head Head) error {
	value, err := rlp.EncodeToBytes(&head)
	if err != nil {
		return errors.Wrap(err, "encode head")
	}
	return w.Set(statedbhelper.KeyOfChainHead(), value)
}

// ReadHead returns nil before genesis is written.
func ReadHead(r statedb.Reader) (*Head, error) {
	value, err := r.Get(statedbhelper.KeyOfChainHead())
	if err != nil || value == nil {
		return nil, err
	}
	head := new(Head)
	if err := rlp.DecodeBytes(value, head); err != nil {
		return nil, errors.Wrap(err, "decode head")
	}
	return head, nil
}

// WriteTip stores block and makes it the head.
func WriteTip(w statedbhelper.Writer, block *types.Block) error {
	if err := WriteBlock(w, block); err != nil {
		return err
	}
	return WriteHead(w, Head{Height: block.Header.Height, Hash: block.Hash()})
}
