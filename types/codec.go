package types

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

// ErrInvalidEncoding is returned when bytes do not decode to the expected
// canonical value.
var ErrInvalidEncoding = errors.New("invalid encoding")

// Every encoded type here consists of integers, strings, byte slices and
// fixed arrays, none of which can fail to encode.
func mustEncode(v interface{}) []byte {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		panic(err)
	}
	return b
}

func decode(b []byte, v interface{}, what string) error {
	if len(b) == 0 {
		return errors.Wrapf(ErrInvalidEncoding, "empty %s", what)
	}
	if err := rlp.DecodeBytes(b, v); err != nil {
		return errors.Wrapf(ErrInvalidEncoding, "%s: %v", what, err)
	}
	return nil
}
