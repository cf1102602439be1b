package forge

import (
	"github.com/pbnjay/memory"
	"github.com/pkg/errors"
)

// ErrInvalidConfig is returned by New for cost parameters Argon2id cannot run with.
var ErrInvalidConfig = errors.New("invalid forge config")

// argon2 takes its parallelism as a uint8.
const maxLanes = 255

// Config sets the Argon2id cost of one Forge hash. Raising any of the
// values makes every nonce attempt more expensive without changing the
// algorithm.
type Config struct {
	MemoryCostKiB uint32 `mapstructure:"memory_cost_kib"`
	TimeCost      uint32 `mapstructure:"time_cost"`
	Lanes         uint32 `mapstructure:"lanes"`
}

// DefaultConfig costs 16 MiB and 3 passes on a single lane.
func DefaultConfig() Config {
	return Config{
		MemoryCostKiB: 16 * 1024,
		TimeCost:      3,
		Lanes:         1,
	}
}

// Validate checks the parameters against the bounds of Argon2id and the
// physical memory of the host.
func (c Config) Validate() error {
	if c.TimeCost < 1 {
		return errors.Wrap(ErrInvalidConfig, "time cost must be at least 1")
	}
	if c.Lanes < 1 || c.Lanes > maxLanes {
		return errors.Wrapf(ErrInvalidConfig, "lanes must be within [1, %d], got %d", maxLanes, c.Lanes)
	}
	if uint64(c.MemoryCostKiB) < 8*uint64(c.Lanes) {
		return errors.Wrapf(ErrInvalidConfig, "memory cost %d KiB is below 8 KiB per lane", c.MemoryCostKiB)
	}
	if total := memory.TotalMemory(); total > 0 && uint64(c.MemoryCostKiB)*1024 > total {
		return errors.Wrapf(ErrInvalidConfig, "memory cost %d KiB exceeds physical memory", c.MemoryCostKiB)
	}
	return nil
}
