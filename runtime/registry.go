package runtime

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/tendermint/tmlibs/log"
	"golang.org/x/exp/maps"

	"github.com/demiurge-chain/demiurge/common"
	"github.com/demiurge-chain/demiurge/common/statedbhelper"
	"github.com/demiurge-chain/demiurge/statedb"
	"github.com/demiurge-chain/demiurge/types"
)

var (
	ErrUnknownModule   = errors.New("unknown module")
	ErrUnknownCall     = errors.New("unknown call")
	ErrDuplicateModule = errors.New("duplicate module")
)

// Registry maps module ids to modules. It is filled at startup and only read
// afterwards.
type Registry struct {
	modules map[string]Module
	logger  log.Logger
}

func NewRegistry(logger log.Logger, modules ...Module) (*Registry, error) {
	r := &Registry{
		modules: make(map[string]Module),
		logger:  logger,
	}
	for _, m := range modules {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	logger.Info("Runtime registry ready", "modules", r.ModuleIDs())
	return r, nil
}

func (r *Registry) Register(m Module) error {
	id := m.ModuleID()
	if _, ok := r.modules[id]; ok {
		return errors.Wrapf(ErrDuplicateModule, "%q", id)
	}
	r.modules[id] = m
	r.logger.Debug("Registered module", "module", id)
	return nil
}

func (r *Registry) Lookup(moduleID string) (Module, bool) {
	m, ok := r.modules[moduleID]
	return m, ok
}

// ModuleIDs returns the registered ids in sorted order.
func (r *Registry) ModuleIDs() []string {
	ids := maps.Keys(r.modules)
	sort.Strings(ids)
	return ids
}

// DispatchTx executes tx in a new Tx of trans. The sender's nonce is
// consumed and the module called; on success the Tx is committed and its
// write set returned, on any failure nothing is written. An unknown module
// is rejected before a Tx is opened.
func (r *Registry) DispatchTx(trans *statedb.Transaction, tx *types.Transaction, height uint64) ([]byte, error) {
	m, ok := r.Lookup(tx.ModuleID)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownModule, "%q", tx.ModuleID)
	}

	ctx := &Context{
		Tx:     tx,
		Height: height,
		Logger: r.logger.With("module", tx.ModuleID, "call", tx.CallID),
	}
	stx := trans.NewTx()
	if err := r.apply(m, ctx, stx); err != nil {
		stx.Rollback()
		return nil, err
	}
	return stx.Commit()
}

func (r *Registry) apply(m Module, ctx *Context, stx *statedb.Tx) (err error) {
	defer common.FuncRecover(ctx.Logger, &err)

	if err = statedbhelper.SetAccountNonce(stx, ctx.Tx.From, ctx.Tx.Nonce); err != nil {
		return err
	}
	return m.Dispatch(ctx, stx)
}
