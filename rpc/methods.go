package rpc

import (
	"github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/demiurge-chain/demiurge/runtime/avatars"
	"github.com/demiurge-chain/demiurge/statedb"
	"github.com/demiurge-chain/demiurge/types"
)

type handlerFunc func(s *Server, params jsoniter.RawMessage) (interface{}, *Error)

var methods = map[string]handlerFunc{
	"cgt_getChainInfo":       getChainInfo,
	"cgt_getBlockByHeight":   getBlockByHeight,
	"cgt_sendRawTransaction": sendRawTransaction,
	"cgt_isArchon":           isArchon,
	"cgt_getAeonProfile":     getAeonProfile,
}

// decodeParams leaves v untouched when params are absent or null.
func decodeParams(params jsoniter.RawMessage, v interface{}) *Error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return newError(CodeInvalidParams, "invalid params: "+err.Error())
	}
	return nil
}

func internalError(err error) *Error {
	return newError(CodeInternalError, err.Error())
}

func getChainInfo(s *Server, _ jsoniter.RawMessage) (interface{}, *Error) {
	info, err := s.backend.ChainInfo()
	if err != nil {
		return nil, internalError(err)
	}
	return &ChainInfoResult{
		ChainID:  info.ChainID,
		Height:   info.Height,
		HeadHash: info.HeadHash.String(),
		Pending:  info.Pending,
	}, nil
}

// getBlockByHeight defaults to the genesis block when no height is given
// and returns null above the chain head.
func getBlockByHeight(s *Server, params jsoniter.RawMessage) (interface{}, *Error) {
	var p struct {
		Height uint64 `json:"height"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	block, err := s.backend.GetBlockByHeight(p.Height)
	if err != nil {
		return nil, internalError(err)
	}
	return block, nil
}

func sendRawTransaction(s *Server, params jsoniter.RawMessage) (interface{}, *Error) {
	var p struct {
		Tx string `json:"tx"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	raw, err := types.DecodeHex(p.Tx)
	if err != nil {
		return nil, newError(CodeInvalidParams, "invalid tx hex: "+err.Error())
	}

	hash, err := s.backend.SubmitRawTransaction(raw)
	switch {
	case err == nil:
	case errors.Is(err, types.ErrInvalidEncoding):
		return nil, newError(CodeInvalidParams, "invalid tx encoding: "+err.Error())
	default:
		return nil, newError(CodeRejected, "transaction rejected: "+err.Error())
	}
	return &SendRawTransactionResult{Accepted: true, Hash: hash.String()}, nil
}

type addressParams struct {
	Address string `json:"address"`
}

func (p *addressParams) parse() (types.Address, *Error) {
	addr, err := types.HexToAddress(p.Address)
	if err != nil {
		return types.Address{}, newError(CodeInvalidParams, "invalid address: "+err.Error())
	}
	return addr, nil
}

func isArchon(s *Server, params jsoniter.RawMessage) (interface{}, *Error) {
	var p addressParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := p.parse()
	if rpcErr != nil {
		return nil, rpcErr
	}

	var archon bool
	if err := s.backend.View(func(r statedb.Reader) (err error) {
		archon, err = avatars.IsArchon(r, addr)
		return err
	}); err != nil {
		return nil, internalError(err)
	}
	return &IsArchonResult{Address: addr.String(), IsArchon: archon}, nil
}

// getAeonProfile looks a profile up by address or, when no address is
// given, by handle. It returns null when there is no such profile.
func getAeonProfile(s *Server, params jsoniter.RawMessage) (interface{}, *Error) {
	var p struct {
		Address string `json:"address"`
		Handle  string `json:"handle"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}

	var (
		addr   types.Address
		byAddr = p.Address != ""
	)
	if byAddr {
		var rpcErr *Error
		if addr, rpcErr = (&addressParams{Address: p.Address}).parse(); rpcErr != nil {
			return nil, rpcErr
		}
	} else if p.Handle == "" {
		return nil, newError(CodeInvalidParams, "address or handle is required")
	}

	var profile *avatars.Profile
	if err := s.backend.View(func(r statedb.Reader) error {
		if !byAddr {
			found, ok, err := avatars.AddressByHandle(r, p.Handle)
			if err != nil || !ok {
				return err
			}
			addr = found
		}
		var err error
		profile, err = avatars.GetProfile(r, addr)
		return err
	}); err != nil {
		return nil, internalError(err)
	}
	return profile, nil
}
