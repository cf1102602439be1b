// Package config loads the node configuration from defaults, an optional
// demiurge.toml and DEMIURGE_* environment variables, in increasing order
// of precedence.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/tendermint/tmlibs/log"

	"github.com/demiurge-chain/demiurge/forge"
	"github.com/demiurge-chain/demiurge/types"
)

const (
	ConfigName = "demiurge"
	EnvPrefix  = "DEMIURGE"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	ChainID       string        `mapstructure:"chain_id"`
	Home          string        `mapstructure:"home"`
	DBPath        string        `mapstructure:"db_path"`
	KeyFile       string        `mapstructure:"key_file"`
	RPCAddress    string        `mapstructure:"rpc_address"`
	LogLevel      string        `mapstructure:"log_level"`
	SnapshotCount int           `mapstructure:"snapshot_count"`
	Forge         forge.Config  `mapstructure:"forge"`
	Miner         MinerConfig   `mapstructure:"miner"`
	TxPool        TxPoolConfig  `mapstructure:"txpool"`
	Genesis       GenesisConfig `mapstructure:"genesis"`

	// Path is the config file that was read, empty when none was found.
	Path string `mapstructure:"-"`
}

type MinerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Workers     int           `mapstructure:"workers"`
	Interval    time.Duration `mapstructure:"interval"`
	MaxBlockTxs int           `mapstructure:"max_block_txs"`
	EmptyBlocks bool          `mapstructure:"empty_blocks"`
}

type TxPoolConfig struct {
	Size             int  `mapstructure:"size"`
	VerifySignatures bool `mapstructure:"verify_signatures"`
}

type GenesisConfig struct {
	Timestamp        uint64 `mapstructure:"timestamp"`
	DifficultyTarget string `mapstructure:"difficulty_target"`
}

// DefaultHome is ~/.demiurge.
func DefaultHome() string {
	home, err := homedir.Dir()
	if err != nil {
		return ".demiurge"
	}
	return filepath.Join(home, ".demiurge")
}

func setDefaults(v *viper.Viper, home string) {
	fc := forge.DefaultConfig()

	v.SetDefault("chain_id", "demiurge-local")
	v.SetDefault("home", home)
	v.SetDefault("db_path", "")
	v.SetDefault("key_file", "")
	v.SetDefault("rpc_address", "127.0.0.1:8545")
	v.SetDefault("log_level", "info")
	v.SetDefault("snapshot_count", 100)
	v.SetDefault("forge.memory_cost_kib", fc.MemoryCostKiB)
	v.SetDefault("forge.time_cost", fc.TimeCost)
	v.SetDefault("forge.lanes", fc.Lanes)
	v.SetDefault("miner.enabled", true)
	v.SetDefault("miner.workers", 1)
	v.SetDefault("miner.interval", 5*time.Second)
	v.SetDefault("miner.max_block_txs", 500)
	v.SetDefault("miner.empty_blocks", false)
	v.SetDefault("txpool.size", 10000)
	v.SetDefault("txpool.verify_signatures", true)
	v.SetDefault("genesis.timestamp", 0)
	v.SetDefault("genesis.difficulty_target", types.MaxTarget().String())
}

// Load reads configFile, or searches home, /etc/demiurge and the working
// directory for demiurge.toml when configFile is empty. A missing file in
// the search path is not an error.
func Load(configFile, home string) (*Config, error) {
	if home == "" {
		home = DefaultHome()
	}
	home, err := homedir.Expand(home)
	if err != nil {
		return nil, errors.Wrap(err, "expand home")
	}

	v := viper.New()
	setDefaults(v, home)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("toml")
		for _, configPath := range []string{home, "/etc/demiurge", "."} {
			v.AddConfigPath(configPath)
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errors.Wrap(err, "read config")
			}
		}
	}

	c := new(Config)
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	c.Path = v.ConfigFileUsed()
	if err := c.resolvePaths(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) resolvePaths() error {
	home, err := homedir.Expand(c.Home)
	if err != nil {
		return errors.Wrap(err, "expand home")
	}
	c.Home = home
	if c.DBPath == "" {
		c.DBPath = filepath.Join(home, "data", "state")
	}
	if c.KeyFile == "" {
		c.KeyFile = filepath.Join(home, "keys", "validator.key")
	}
	if c.DBPath, err = homedir.Expand(c.DBPath); err != nil {
		return errors.Wrap(err, "expand db_path")
	}
	if c.KeyFile, err = homedir.Expand(c.KeyFile); err != nil {
		return errors.Wrap(err, "expand key_file")
	}
	return nil
}

func (c *Config) Validate() error {
	if c.ChainID == "" {
		return errors.Wrap(ErrInvalidConfig, "chain_id is empty")
	}
	if c.SnapshotCount < 0 {
		return errors.Wrapf(ErrInvalidConfig, "snapshot_count %d is negative", c.SnapshotCount)
	}
	if _, err := log.AllowLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "log_level: %v", err)
	}
	if err := c.Forge.Validate(); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "forge: %v", err)
	}
	if c.Miner.Workers < 1 {
		return errors.Wrapf(ErrInvalidConfig, "miner.workers %d must be at least 1", c.Miner.Workers)
	}
	if c.Miner.Interval <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "miner.interval %s must be positive", c.Miner.Interval)
	}
	if c.Miner.MaxBlockTxs < 1 {
		return errors.Wrapf(ErrInvalidConfig, "miner.max_block_txs %d must be at least 1", c.Miner.MaxBlockTxs)
	}
	if c.TxPool.Size < 1 {
		return errors.Wrapf(ErrInvalidConfig, "txpool.size %d must be at least 1", c.TxPool.Size)
	}
	if _, err := c.GenesisTarget(); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "genesis.difficulty_target: %v", err)
	}
	return nil
}

// GenesisTarget is the fixed difficulty target every block must carry.
func (c *Config) GenesisTarget() (types.Target, error) {
	return types.ParseTarget(c.Genesis.DifficultyTarget)
}
