package types

import (
	"crypto/sha256"
	"strings"

	"github.com/pkg/errors"
	hex "github.com/tmthrgd/go-hex"
)

// HashSize is the length of a SHA-256 digest.
const HashSize = 32

// Hash is a SHA-256 digest.
type Hash [HashSize]byte

// ZeroHash is the prev hash of the genesis header.
var ZeroHash Hash

// Sum hashes the concatenation of data.
func Sum(data ...[]byte) Hash {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) IsZero() bool { return h == ZeroHash }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(text []byte) error {
	return decodeFixedHex(h[:], string(text))
}

// HexBytes is a byte slice whose text form is lower-case hex.
type HexBytes []byte

func (b HexBytes) String() string { return hex.EncodeToString(b) }

func (b HexBytes) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *HexBytes) UnmarshalText(text []byte) error {
	raw, err := DecodeHex(string(text))
	if err != nil {
		return err
	}
	*b = raw
	return nil
}

// DecodeHex decodes s with or without a 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "invalid hex")
	}
	return raw, nil
}

func decodeFixedHex(dst []byte, s string) error {
	raw, err := DecodeHex(s)
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return errors.Errorf("invalid length %d, expected %d bytes", len(raw), len(dst))
	}
	copy(dst, raw)
	return nil
}
