// Package node ties the state db, the runtime registry and the transaction
// pool into a running chain. A single actor goroutine owns the chain head
// and the pool; every public method runs its critical section on that
// goroutine, so reads of the head and the pool are always consistent with
// each other.
package node

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/tendermint/tmlibs/log"

	"github.com/demiurge-chain/demiurge/chain"
	"github.com/demiurge-chain/demiurge/common/statedbhelper"
	"github.com/demiurge-chain/demiurge/config"
	"github.com/demiurge-chain/demiurge/forge"
	"github.com/demiurge-chain/demiurge/runtime"
	"github.com/demiurge-chain/demiurge/statedb"
	"github.com/demiurge-chain/demiurge/txpool"
	"github.com/demiurge-chain/demiurge/types"
)

var (
	ErrNodeClosed       = errors.New("node is closed")
	ErrInvalidSignature = errors.New("invalid transaction signature")
	ErrNonceTooLow      = errors.New("nonce already used")
	ErrStaleHead        = errors.New("chain head moved")
	ErrChainIDMismatch  = errors.New("chain id mismatch")
	ErrGenesisMismatch  = errors.New("stored genesis does not match config")
)

// Config is the part of the node configuration the node itself acts on.
type Config struct {
	ChainID          string
	Target           types.Target
	GenesisTimestamp uint64
	MaxBlockTxs      int
	TxPoolSize       int
	VerifySignatures bool
	MiningWorkers    int
}

func NewConfig(c *config.Config) (Config, error) {
	target, err := c.GenesisTarget()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ChainID:          c.ChainID,
		Target:           target,
		GenesisTimestamp: c.Genesis.Timestamp,
		MaxBlockTxs:      c.Miner.MaxBlockTxs,
		TxPoolSize:       c.TxPool.Size,
		VerifySignatures: c.TxPool.VerifySignatures,
		MiningWorkers:    c.Miner.Workers,
	}, nil
}

// Info is a consistent snapshot of the chain tip and the pool.
type Info struct {
	ChainID  string     `json:"chain_id"`
	Height   uint64     `json:"height"`
	HeadHash types.Hash `json:"head_hash"`
	Pending  int        `json:"pending"`
}

// chainState is owned by the actor goroutine.
type chainState struct {
	head *types.BlockHeader
	pool txpool.TxPool
}

type Node struct {
	cfg      Config
	sdb      *statedb.StateDB
	engine   *forge.Engine
	registry *runtime.Registry
	logger   log.Logger

	requests chan func(*chainState)
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// serializes block production and import
	produceMtx sync.Mutex
}

// New opens the chain stored in sdb, writing genesis on first use, and
// starts the actor.
func New(cfg Config, sdb *statedb.StateDB, engine *forge.Engine, registry *runtime.Registry, logger log.Logger) (*Node, error) {
	n := &Node{
		cfg:      cfg,
		sdb:      sdb,
		engine:   engine,
		registry: registry,
		logger:   logger,
		requests: make(chan func(*chainState)),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	head, err := n.loadHead()
	if err != nil {
		return nil, err
	}
	st := &chainState{
		head: head,
		pool: txpool.NewTxPool(cfg.TxPoolSize, logger.With("module", "txpool")),
	}
	go n.loop(st)

	logger.Info("Node started", "chain_id", cfg.ChainID, "height", head.Height, "head", head.Hash())
	return n, nil
}

func (n *Node) loadHead() (*types.BlockHeader, error) {
	head, err := chain.ReadHead(n.sdb)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return n.writeGenesis()
	}

	chainID, err := statedbhelper.GetChainID(n.sdb)
	if err != nil {
		return nil, err
	}
	if chainID != n.cfg.ChainID {
		return nil, errors.Wrapf(ErrChainIDMismatch, "stored %q, configured %q", chainID, n.cfg.ChainID)
	}
	genesis, err := chain.ReadBlock(n.sdb, 0)
	if err != nil {
		return nil, err
	}
	if genesis == nil || genesis.Header.DifficultyTarget != n.cfg.Target {
		return nil, ErrGenesisMismatch
	}

	block, err := chain.ReadBlock(n.sdb, head.Height)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, errors.Wrapf(chain.ErrMissingBlock, "head block %d", head.Height)
	}
	return &block.Header, nil
}

func (n *Node) writeGenesis() (*types.BlockHeader, error) {
	genesis := chain.Genesis(n.cfg.GenesisTimestamp, n.cfg.Target)
	err := n.sdb.Update(func(tx *statedb.Tx) error {
		if err := statedbhelper.SetChainIDOnce(tx, n.cfg.ChainID); err != nil {
			return err
		}
		return chain.WriteTip(tx, genesis)
	})
	if err != nil {
		return nil, errors.Wrap(err, "write genesis")
	}
	n.logger.Info("Wrote genesis", "hash", genesis.Hash(), "target", genesis.Header.DifficultyTarget)
	return &genesis.Header, nil
}

func (n *Node) loop(st *chainState) {
	defer close(n.done)
	for {
		select {
		case fn := <-n.requests:
			fn(st)
		case <-n.quit:
			return
		}
	}
}

// do runs fn on the actor goroutine and waits for it to finish.
func (n *Node) do(fn func(st *chainState)) error {
	finished := make(chan struct{})
	req := func(st *chainState) {
		defer close(finished)
		fn(st)
	}
	select {
	case n.requests <- req:
	case <-n.quit:
		return ErrNodeClosed
	}
	<-finished
	return nil
}

// Stop terminates the actor. The state db stays open.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		close(n.quit)
	})
	<-n.done
	n.logger.Info("Node stopped")
}

func (n *Node) ChainInfo() (Info, error) {
	var info Info
	err := n.do(func(st *chainState) {
		info = Info{
			ChainID:  n.cfg.ChainID,
			Height:   st.head.Height,
			HeadHash: st.head.Hash(),
			Pending:  st.pool.Len(),
		}
	})
	return info, err
}

// GetBlockByHeight returns nil for heights above the head. A missing block
// at or below the head is reported as chain.ErrMissingBlock.
func (n *Node) GetBlockByHeight(height uint64) (*types.Block, error) {
	var block *types.Block
	err := n.sdb.View(func(r statedb.Reader) error {
		head, err := chain.ReadHead(r)
		if err != nil {
			return err
		}
		if head == nil || height > head.Height {
			return nil
		}
		if block, err = chain.ReadBlock(r, height); err != nil {
			return err
		}
		if block == nil {
			return errors.Wrapf(chain.ErrMissingBlock, "height %d", height)
		}
		return nil
	})
	return block, err
}

// View runs fn against the committed state as of the last block.
func (n *Node) View(fn func(r statedb.Reader) error) error {
	return n.sdb.View(fn)
}

func (n *Node) Registry() *runtime.Registry {
	return n.registry
}
