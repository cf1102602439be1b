package types

import (
	"crypto/ed25519"

	hex "github.com/tmthrgd/go-hex"
)

// AddressSize is the length of an account address.
const AddressSize = 32

// Address identifies an account. It is the first 32 bytes of the account's
// ed25519 public key.
type Address [AddressSize]byte

// AddressFromPublicKey derives the address of pub.
func AddressFromPublicKey(pub ed25519.PublicKey) Address {
	var a Address
	copy(a[:], pub)
	return a
}

// HexToAddress parses a hex encoded address.
func HexToAddress(s string) (Address, error) {
	var a Address
	err := decodeFixedHex(a[:], s)
	return a, err
}

// PublicKey returns the ed25519 public key the address was derived from.
func (a Address) PublicKey() ed25519.PublicKey {
	pub := make([]byte, ed25519.PublicKeySize)
	copy(pub, a[:])
	return pub
}

func (a Address) Bytes() []byte { return a[:] }

func (a Address) String() string { return hex.EncodeToString(a[:]) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	return decodeFixedHex(a[:], string(text))
}
