package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tendermint/tmlibs/log"

	"github.com/demiurge-chain/demiurge/config"
	"github.com/demiurge-chain/demiurge/version"
)

//RootCmd root cmd
var RootCmd = &cobra.Command{
	Use:           "demiurge",
	Short:         "Demiurge chain node",
	Long:          "Demiurge chain node",
	SilenceUsage:  true,
	SilenceErrors: true,
}

//Execute starting to execute progress
func Execute() error {
	addCommands()
	addFlags()
	return RootCmd.Execute()
}

func addCommands() {
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(startCmd)
	RootCmd.AddCommand(keygenCmd)
	RootCmd.AddCommand(resetCmd)
	RootCmd.AddCommand(rollbackCmd)
}

var (
	homeDir      string
	configFile   string
	rollbackNum  int
	keygenOutput string
)

func addFlags() {
	RootCmd.PersistentFlags().StringVar(&homeDir, "home", config.DefaultHome(), "node home directory")
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default searches home, /etc/demiurge and the working directory)")
	rollbackCmd.Flags().IntVarP(&rollbackNum, "blocks", "n", 1, "number of blocks to roll back")
	keygenCmd.Flags().StringVarP(&keygenOutput, "output", "o", "", "key file to write (default key_file from config)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Long:  "Show version info",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("%s (protocol %d)\n", version.Version, version.ProtocolVersion)
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the node",
	Long:  "Run the node: block production, the state db and the JSON-RPC server",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdStart(cmd, args)
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a node key",
	Long:  "Generate a node key and print its address",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdKeygen(cmd, args)
	},
}

var resetCmd = &cobra.Command{
	Use:   "unsafe_reset_all",
	Short: "(unsafe) Remove all the data",
	Long:  "(unsafe) Remove all the data, keeping the node key",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdReset(cmd, args)
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the chain",
	Long:  "Roll back the chain head and state by a number of blocks",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmdRollback(cmd, args)
	},
}

func loadConfig() (*config.Config, error) {
	return config.Load(configFile, homeDir)
}

func newLogger(level string) (log.Logger, error) {
	option, err := log.AllowLevel(level)
	if err != nil {
		return nil, err
	}
	return log.NewFilter(log.NewTMLogger(log.NewSyncWriter(os.Stdout)), option), nil
}

//cmdReset removes the state db
func cmdReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	return resetAll(cfg.DBPath, logger)
}

func resetAll(dbDir string, logger log.Logger) error {
	if err := os.RemoveAll(dbDir); err != nil {
		logger.Error("Error removing directory", "err", err)
		return err
	}
	logger.Info("Removed all data", "dir", dbDir)
	return nil
}
