package avatars

import (
	"math"
	"math/bits"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/demiurge-chain/demiurge/runtime"
	"github.com/demiurge-chain/demiurge/types"
)

const (
	prefixArchonFlag  = "avatars:archon:"
	prefixAeonProfile = "aeon/profile:"
	prefixAeonHandle  = "aeon/handle/"

	AscensionStep           = 1000
	LuminarySyzygyThreshold = 10000
	BadgeLuminary           = "Luminary"

	minHandleLen = 3
	maxHandleLen = 32
)

var (
	ErrProfileExists   = errors.New("aeon profile already exists")
	ErrProfileNotFound = errors.New("aeon profile not found")
	ErrInvalidHandle   = errors.New("invalid handle")
	ErrHandleTaken     = errors.New("handle already taken")
	ErrOverflow        = errors.New("arithmetic overflow")
)

// Profile is an aeon's public record and progression. Empty Bio and Handle
// mean unset.
type Profile struct {
	Address         types.Address `json:"address"`
	DisplayName     string        `json:"display_name"`
	Bio             string        `json:"bio,omitempty"`
	Handle          string        `json:"handle,omitempty"`
	GnosisXP        uint64        `json:"gnosis_xp"`
	SyzygyScore     uint64        `json:"syzygy_score"`
	AscensionLevel  uint32        `json:"ascension_level"`
	Badges          []string      `json:"badges"`
	CreatedAtHeight uint64        `json:"created_at_height"`
}

func archonFlagKey(addr types.Address) string {
	return prefixArchonFlag + string(addr[:])
}

func profileKey(addr types.Address) string {
	return prefixAeonProfile + string(addr[:])
}

func handleKey(handle string) string {
	return prefixAeonHandle + handle
}

// IsArchon reports whether addr has claimed archon status.
func IsArchon(r runtime.Reader, addr types.Address) (bool, error) {
	value, err := r.Get(archonFlagKey(addr))
	if err != nil {
		return false, err
	}
	return len(value) == 1 && value[0] == 1, nil
}

func SetArchonFlag(s runtime.State, addr types.Address, archon bool) error {
	if archon {
		return s.Set(archonFlagKey(addr), []byte{1})
	}
	return s.Set(archonFlagKey(addr), []byte{0})
}

// GetProfile returns nil if addr has no profile.
func GetProfile(r runtime.Reader, addr types.Address) (*Profile, error) {
	value, err := r.Get(profileKey(addr))
	if err != nil || value == nil {
		return nil, err
	}
	p := new(Profile)
	if err := rlp.DecodeBytes(value, p); err != nil {
		return nil, errors.Wrapf(err, "decode profile %s", addr)
	}
	if p.Badges == nil {
		p.Badges = []string{}
	}
	return p, nil
}

func mustGetProfile(r runtime.Reader, addr types.Address) (*Profile, error) {
	p, err := GetProfile(r, addr)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.Wrapf(ErrProfileNotFound, "address %s", addr)
	}
	return p, nil
}

func storeProfile(s runtime.State, p *Profile) error {
	value, err := rlp.EncodeToBytes(p)
	if err != nil {
		return errors.Wrap(err, "encode profile")
	}
	return s.Set(profileKey(p.Address), value)
}

// CreateProfile starts a profile at ascension level 1.
func CreateProfile(s runtime.State, addr types.Address, displayName, bio string, height uint64) (*Profile, error) {
	existing, err := GetProfile(s, addr)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Wrapf(ErrProfileExists, "address %s", addr)
	}

	p := &Profile{
		Address:         addr,
		DisplayName:     displayName,
		Bio:             bio,
		AscensionLevel:  1,
		Badges:          []string{},
		CreatedAtHeight: height,
	}
	if err := storeProfile(s, p); err != nil {
		return nil, err
	}
	return p, nil
}

// NormalizeHandle trims and lower-cases handle and checks it against
// [a-z0-9_]{3,32}.
func NormalizeHandle(handle string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(handle))
	if len(normalized) < minHandleLen || len(normalized) > maxHandleLen {
		return "", errors.Wrapf(ErrInvalidHandle, "handle must be %d-%d characters", minHandleLen, maxHandleLen)
	}
	for _, c := range normalized {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_') {
			return "", errors.Wrapf(ErrInvalidHandle, "handle can only contain lowercase letters, numbers, and underscores")
		}
	}
	return normalized, nil
}

// AddressByHandle resolves a handle in any letter case.
func AddressByHandle(r runtime.Reader, handle string) (types.Address, bool, error) {
	value, err := r.Get(handleKey(strings.ToLower(strings.TrimSpace(handle))))
	if err != nil {
		return types.Address{}, false, err
	}
	if len(value) != types.AddressSize {
		return types.Address{}, false, nil
	}
	var addr types.Address
	copy(addr[:], value)
	return addr, true, nil
}

// SetHandle gives addr a unique handle. The previous handle of addr, if
// any, is released.
func SetHandle(s runtime.State, addr types.Address, handle string) (*Profile, error) {
	normalized, err := NormalizeHandle(handle)
	if err != nil {
		return nil, err
	}

	owner, taken, err := AddressByHandle(s, normalized)
	if err != nil {
		return nil, err
	}
	if taken && owner != addr {
		return nil, errors.Wrapf(ErrHandleTaken, "%q", normalized)
	}

	p, err := mustGetProfile(s, addr)
	if err != nil {
		return nil, err
	}
	if p.Handle != "" && p.Handle != normalized {
		if err := s.Delete(handleKey(p.Handle)); err != nil {
			return nil, err
		}
	}

	p.Handle = normalized
	if err := storeProfile(s, p); err != nil {
		return nil, err
	}
	if err := s.Set(handleKey(normalized), addr.Bytes()); err != nil {
		return nil, err
	}
	return p, nil
}

func AddGnosisXP(s runtime.State, addr types.Address, amount uint64) error {
	p, err := mustGetProfile(s, addr)
	if err != nil {
		return err
	}
	sum, carry := bits.Add64(p.GnosisXP, amount, 0)
	if carry != 0 {
		return errors.Wrap(ErrOverflow, "gnosis xp")
	}
	p.GnosisXP = sum
	return storeProfile(s, p)
}

func AddSyzygyScore(s runtime.State, addr types.Address, amount uint64) error {
	p, err := mustGetProfile(s, addr)
	if err != nil {
		return err
	}
	sum, carry := bits.Add64(p.SyzygyScore, amount, 0)
	if carry != 0 {
		return errors.Wrap(ErrOverflow, "syzygy score")
	}
	p.SyzygyScore = sum
	return storeProfile(s, p)
}

// AscensionLevel is 1 + (xp + 2*score) / AscensionStep.
func AscensionLevel(xp, score uint64) (uint32, error) {
	hi, weighted := bits.Mul64(score, 2)
	if hi != 0 {
		return 0, errors.Wrap(ErrOverflow, "syzygy score weighting")
	}
	total, carry := bits.Add64(xp, weighted, 0)
	if carry != 0 {
		return 0, errors.Wrap(ErrOverflow, "total score")
	}
	level := total/AscensionStep + 1
	if level > math.MaxUint32 {
		return 0, errors.Wrap(ErrOverflow, "ascension level")
	}
	return uint32(level), nil
}

func RecomputeAscension(s runtime.State, addr types.Address) error {
	p, err := mustGetProfile(s, addr)
	if err != nil {
		return err
	}
	level, err := AscensionLevel(p.GnosisXP, p.SyzygyScore)
	if err != nil {
		return err
	}
	p.AscensionLevel = level
	return storeProfile(s, p)
}

// UpdateBadges awards every badge whose threshold is met. Badges are never
// duplicated or revoked.
func UpdateBadges(s runtime.State, addr types.Address) error {
	p, err := mustGetProfile(s, addr)
	if err != nil {
		return err
	}
	if p.SyzygyScore >= LuminarySyzygyThreshold && !p.hasBadge(BadgeLuminary) {
		p.Badges = append(p.Badges, BadgeLuminary)
	}
	return storeProfile(s, p)
}

func (p *Profile) hasBadge(badge string) bool {
	for _, b := range p.Badges {
		if b == badge {
			return true
		}
	}
	return false
}
