package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/demiurge-chain/demiurge/forge"
	"github.com/demiurge-chain/demiurge/keys"
	"github.com/demiurge-chain/demiurge/miner"
	"github.com/demiurge-chain/demiurge/node"
	"github.com/demiurge-chain/demiurge/rpc"
	"github.com/demiurge-chain/demiurge/runtime"
	"github.com/demiurge-chain/demiurge/runtime/avatars"
	"github.com/demiurge-chain/demiurge/statedb"
	"github.com/demiurge-chain/demiurge/version"
)

//cmdStart runs the node until SIGINT or SIGTERM
func cmdStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfg.Path != "" {
		logger.Info("Loaded config", "file", cfg.Path)
	}

	key, created, err := keys.LoadOrGenerate(cfg.KeyFile)
	if err != nil {
		return err
	}
	if created {
		logger.Info("Generated node key", "file", cfg.KeyFile)
	}

	sdb, err := statedb.Open(cfg.DBPath, cfg.SnapshotCount)
	if err != nil {
		return err
	}
	defer func() {
		if err := sdb.Close(); err != nil {
			logger.Error("Close state db", "err", err)
		}
	}()

	engine, err := forge.New(cfg.Forge)
	if err != nil {
		return err
	}
	registry, err := runtime.NewRegistry(logger.With("module", "runtime"), avatars.New())
	if err != nil {
		return err
	}
	nodeCfg, err := node.NewConfig(cfg)
	if err != nil {
		return err
	}
	n, err := node.New(nodeCfg, sdb, engine, registry, logger.With("module", "node"))
	if err != nil {
		return err
	}
	defer n.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	server := rpc.NewServer(n, logger.With("module", "rpc"))
	g.Go(func() error { return server.Serve(ctx, cfg.RPCAddress) })
	if cfg.Miner.Enabled {
		m := miner.New(n, cfg.Miner, logger.With("module", "miner"))
		g.Go(func() error { return m.Run(ctx) })
	}

	logger.Info("Node started", "version", version.Version, "chain_id", cfg.ChainID,
		"address", key.Address, "rpc", cfg.RPCAddress, "mining", cfg.Miner.Enabled,
		"modules", n.Registry().ModuleIDs())

	err = g.Wait()
	logger.Info("Shutting down")
	return err
}
