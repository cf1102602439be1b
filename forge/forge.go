// Package forge implements the memory-hard proof of work: Argon2id over the
// header template and nonce, followed by SHA-256.
package forge

import (
	"context"
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/errgroup"

	"github.com/demiurge-chain/demiurge/types"
)

// ErrNonceSpaceExhausted is returned when no nonce meets the target.
var ErrNonceSpaceExhausted = errors.New("nonce space exhausted")

var salt = []byte("demiurge-forge")

const keyLen = 32

// Engine computes Forge hashes for a fixed cost configuration.
type Engine struct {
	cfg Config
}

// New validates cfg. Hashing with the returned engine cannot fail.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Hash returns SHA-256(Argon2id(template || le64(nonce))).
func (e *Engine) Hash(template []byte, nonce uint64) types.Hash {
	input := make([]byte, len(template)+8)
	copy(input, template)
	binary.LittleEndian.PutUint64(input[len(template):], nonce)

	key := argon2.IDKey(input, salt, e.cfg.TimeCost, e.cfg.MemoryCostKiB, uint8(e.cfg.Lanes), keyLen)
	return types.Sum(key)
}

// HeaderHash is the Forge hash of a sealed header.
func (e *Engine) HeaderHash(h *types.BlockHeader) types.Hash {
	return e.Hash(h.PowTemplate(), h.Nonce)
}

// Verify reports whether the header's nonce meets its own target.
func (e *Engine) Verify(h *types.BlockHeader) bool {
	return MeetsDifficulty(e.HeaderHash(h), h.DifficultyTarget)
}

// MeetsDifficulty reads the first 16 bytes of hash as a big-endian u128 and
// compares it against the inclusive target.
func MeetsDifficulty(hash types.Hash, target types.Target) bool {
	v := new(uint256.Int).SetBytes(hash[:types.TargetSize])
	return v.Cmp(target.Uint256()) <= 0
}

// Mine searches for a nonce that seals header. Worker i tries i, i+w, i+2w,
// ... so the ranges never overlap. Every nonce attempt checks for
// cancellation, and the first worker to find a nonce stops the others;
// exactly one nonce is returned even if several workers succeed at once.
func (e *Engine) Mine(ctx context.Context, header types.BlockHeader, workers int) (types.BlockHeader, error) {
	if workers < 1 {
		workers = 1
	}
	template := header.PowTemplate()
	target := header.DifficultyTarget

	searchCtx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		found  atomic.Bool
		winner uint64
	)
	step := uint64(workers)
	g, gctx := errgroup.WithContext(searchCtx)
	for i := 0; i < workers; i++ {
		start := uint64(i)
		g.Go(func() error {
			for nonce := start; ; nonce += step {
				select {
				case <-gctx.Done():
					return nil
				default:
				}
				if MeetsDifficulty(e.Hash(template, nonce), target) {
					if found.CompareAndSwap(false, true) {
						winner = nonce
						stop()
					}
					return nil
				}
				if nonce > math.MaxUint64-step {
					return nil
				}
			}
		})
	}
	_ = g.Wait()

	if found.Load() {
		header.Nonce = winner
		return header, nil
	}
	if err := ctx.Err(); err != nil {
		return header, err
	}
	return header, ErrNonceSpaceExhausted
}
