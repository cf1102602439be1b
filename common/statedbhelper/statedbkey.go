package statedbhelper

import (
	"encoding/binary"

	"github.com/demiurge-chain/demiurge/types"
)

// Every key owned by the node itself starts with '/'. Runtime modules use
// their own prefixes, which never start with '/'.

func KeyOfAccount(addr types.Address) string {
	return "/account/" + addr.String()
}

func KeyOfAccountNonce(addr types.Address) string {
	return KeyOfAccount(addr) + "/nonce"
}

func KeyOfChainHead() string {
	return "/chain/head"
}

func KeyOfBlock(height uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], height)
	return "/chain/block/" + string(b[:])
}

func KeyOfChainID() string {
	return "/genesis/chainid"
}
