package types

import (
	"strings"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// TargetSize is the width of a difficulty target in bytes (an unsigned
// 128-bit integer).
const TargetSize = 16

// Target is a difficulty target stored as a big-endian u128. A smaller
// target is harder to meet.
type Target [TargetSize]byte

// ErrTargetOverflow is returned for values that do not fit in 128 bits.
var ErrTargetOverflow = errors.New("difficulty target exceeds 128 bits")

// MaxTarget is met by every hash.
func MaxTarget() Target {
	var t Target
	for i := range t {
		t[i] = 0xff
	}
	return t
}

// TargetFromUint256 narrows v to a Target.
func TargetFromUint256(v *uint256.Int) (Target, error) {
	var t Target
	if v.BitLen() > TargetSize*8 {
		return t, ErrTargetOverflow
	}
	b := v.Bytes32()
	copy(t[:], b[32-TargetSize:])
	return t, nil
}

// ParseTarget accepts a decimal string or a 0x prefixed hex string.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, errors.New("empty difficulty target")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if len(digits)%2 == 1 {
			digits = "0" + digits
		}
		raw, err := DecodeHex(digits)
		if err != nil {
			return Target{}, err
		}
		raw = trimLeadingZeros(raw)
		if len(raw) > TargetSize {
			return Target{}, ErrTargetOverflow
		}
		var t Target
		copy(t[TargetSize-len(raw):], raw)
		return t, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Target{}, errors.Wrapf(err, "invalid difficulty target %q", s)
	}
	return TargetFromUint256(v)
}

func trimLeadingZeros(b []byte) []byte {
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	return b
}

// Uint256 widens the target for arithmetic.
func (t Target) Uint256() *uint256.Int {
	return new(uint256.Int).SetBytes(t[:])
}

func (t Target) String() string { return t.Uint256().Dec() }

func (t Target) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Target) UnmarshalText(text []byte) error {
	parsed, err := ParseTarget(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
