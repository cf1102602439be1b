package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/demiurge-chain/demiurge/chain"
	"github.com/demiurge-chain/demiurge/keys"
	"github.com/demiurge-chain/demiurge/statedb"
)

//cmdKeygen writes a new key and prints its address
func cmdKeygen(cmd *cobra.Command, args []string) error {
	path := keygenOutput
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.KeyFile
	}

	key, err := keys.Generate(path)
	if err != nil {
		return err
	}
	fmt.Printf("key file: %s\naddress:  %s\n", path, key.Address)
	return nil
}

//cmdRollback rolls the state db back by whole blocks; the node must be stopped
func cmdRollback(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sdb, err := statedb.Open(cfg.DBPath, cfg.SnapshotCount)
	if err != nil {
		return err
	}
	defer sdb.Close()

	head, err := chain.Rollback(sdb, rollbackNum)
	if err != nil {
		return err
	}
	fmt.Printf("head height: %d\nhead hash:   %s\n", head.Height, head.Hash)
	return nil
}
