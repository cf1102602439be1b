// Package miner drives block production on a fixed interval.
package miner

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tendermint/tmlibs/log"

	"github.com/demiurge-chain/demiurge/config"
	"github.com/demiurge-chain/demiurge/node"
	"github.com/demiurge-chain/demiurge/types"
)

//go:generate mockgen -source miner.go -destination miner_mocks.go -package miner

// Producer is the part of the node the miner drives.
type Producer interface {
	ChainInfo() (node.Info, error)
	ProduceBlock(ctx context.Context) (*types.Block, error)
}

type Miner struct {
	producer    Producer
	interval    time.Duration
	emptyBlocks bool
	logger      log.Logger
}

func New(producer Producer, cfg config.MinerConfig, logger log.Logger) *Miner {
	return &Miner{
		producer:    producer,
		interval:    cfg.Interval,
		emptyBlocks: cfg.EmptyBlocks,
		logger:      logger,
	}
}

// Run produces a block every interval while transactions are pending, or
// on every tick when empty blocks are enabled. It returns nil when ctx is
// done and an error only if the node shuts down underneath it.
func (m *Miner) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Miner started", "interval", m.interval, "empty_blocks", m.emptyBlocks)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Miner stopped")
			return nil
		case <-ticker.C:
			err := m.tick(ctx)
			switch {
			case err == nil:
			case ctx.Err() != nil:
				m.logger.Info("Miner stopped")
				return nil
			case errors.Is(err, node.ErrNodeClosed):
				return err
			default:
				m.logger.Error("Block production failed", "err", err)
			}
		}
	}
}

func (m *Miner) tick(ctx context.Context) error {
	info, err := m.producer.ChainInfo()
	if err != nil {
		return err
	}
	if info.Pending == 0 && !m.emptyBlocks {
		return nil
	}

	block, err := m.producer.ProduceBlock(ctx)
	if err != nil {
		return err
	}
	m.logger.Debug("Produced block", "height", block.Header.Height, "txs", len(block.Transactions))
	return nil
}
