// Package runtime routes transactions to the registered modules. Each
// transaction runs inside its own statedb.Tx so that a failing call leaves
// no writes behind.
package runtime

import (
	"github.com/tendermint/tmlibs/log"

	"github.com/demiurge-chain/demiurge/types"
)

//go:generate mockgen -source runtime.go -destination runtime_mocks.go -package runtime

// Reader is read-only access to state.
type Reader interface {
	Get(key string) ([]byte, error)
}

// State is the view a module dispatches against. Writes are buffered until
// the surrounding transaction commits.
type State interface {
	Reader
	Set(key string, value []byte) error
	Delete(key string) error
}

// Context carries the transaction being executed.
type Context struct {
	Tx     *types.Transaction
	Height uint64
	Logger log.Logger
}

// Module handles every call addressed to its module id. Modules hold no
// state of their own.
type Module interface {
	ModuleID() string
	Dispatch(ctx *Context, state State) error
}
