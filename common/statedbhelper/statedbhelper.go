// Package statedbhelper reads and writes the node-owned records in the
// state db: account nonces and the genesis chain id.
package statedbhelper

import (
	"github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/demiurge-chain/demiurge/statedb"
	"github.com/demiurge-chain/demiurge/types"
)

// ErrInvalidNonce is returned when a transaction's nonce is not the
// sender's last nonce plus one.
var ErrInvalidNonce = errors.New("invalid nonce")

// Writer is the write side of a statedb.Tx.
type Writer interface {
	statedb.Reader
	Set(key string, value []byte) error
}

type AccountInfo struct {
	Nonce uint64 `json:"nonce"`
}

// GetAccountNonce returns the last nonce used by addr, 0 if it never sent a
// transaction.
func GetAccountNonce(r statedb.Reader, addr types.Address) (uint64, error) {
	value, err := r.Get(KeyOfAccountNonce(addr))
	if err != nil {
		return 0, err
	}
	if len(value) == 0 {
		return 0, nil
	}

	account := new(AccountInfo)
	if err := jsoniter.Unmarshal(value, account); err != nil {
		return 0, errors.Wrapf(err, "decode account %s", addr)
	}
	return account.Nonce, nil
}

// CheckAccountNonce requires nonce to be the last nonce of addr plus one.
func CheckAccountNonce(r statedb.Reader, addr types.Address, nonce uint64) error {
	lastNonce, err := GetAccountNonce(r, addr)
	if err != nil {
		return err
	}
	if nonce != lastNonce+1 {
		return errors.Wrapf(ErrInvalidNonce, "address:%s expected: %d, got: %d", addr, lastNonce+1, nonce)
	}
	return nil
}

// SetAccountNonce checks nonce and records it as the last nonce of addr.
func SetAccountNonce(w Writer, addr types.Address, nonce uint64) error {
	if err := CheckAccountNonce(w, addr, nonce); err != nil {
		return err
	}

	accountData, err := jsoniter.Marshal(&AccountInfo{Nonce: nonce})
	if err != nil {
		return errors.Wrap(err, "encode account")
	}
	return w.Set(KeyOfAccountNonce(addr), accountData)
}

// SetChainIDOnce stores the chain id at genesis and refuses to change it.
func SetChainIDOnce(w Writer, chainID string) error {
	value, err := w.Get(KeyOfChainID())
	if err != nil {
		return err
	}
	if len(value) != 0 {
		if string(value) == chainID {
			return nil
		}
		return errors.Errorf("chain id already set to %q", value)
	}
	return w.Set(KeyOfChainID(), []byte(chainID))
}

// GetChainID returns the stored chain id, empty before genesis.
func GetChainID(r statedb.Reader) (string, error) {
	value, err := r.Get(KeyOfChainID())
	if err != nil {
		return "", err
	}
	return string(value), nil
}
