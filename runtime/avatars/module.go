// Package avatars is the avatars_profiles runtime module: archon flags,
// aeon profiles with unique handles, and progression.
package avatars

import (
	"github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/demiurge-chain/demiurge/runtime"
	"github.com/demiurge-chain/demiurge/types"
)

const ModuleID = "avatars_profiles"

const (
	CallClaimArchon   = "claim_archon"
	CallCreateProfile = "create_profile"
	CallSetHandle     = "set_handle"
	CallAwardXP       = "award_xp"
	CallAwardScore    = "award_score"
)

var (
	ErrInvalidPayload = errors.New("invalid payload")
	ErrNotArchon      = errors.New("sender is not an archon")
)

// CreateProfilePayload is the JSON payload of create_profile.
type CreateProfilePayload struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio,omitempty"`
}

// SetHandlePayload is the JSON payload of set_handle.
type SetHandlePayload struct {
	Handle string `json:"handle"`
}

// AwardPayload is the JSON payload of award_xp and award_score.
type AwardPayload struct {
	Target types.Address `json:"target"`
	Amount uint64        `json:"amount"`
}

type Module struct{}

var _ runtime.Module = Module{}

func New() Module { return Module{} }

func (Module) ModuleID() string { return ModuleID }

func (m Module) Dispatch(ctx *runtime.Context, state runtime.State) error {
	tx := ctx.Tx
	switch tx.CallID {
	case CallClaimArchon:
		return SetArchonFlag(state, tx.From, true)
	case CallCreateProfile:
		var p CreateProfilePayload
		if err := decodePayload(tx.Payload, &p); err != nil {
			return err
		}
		if p.DisplayName == "" {
			return errors.Wrap(ErrInvalidPayload, "display_name is required")
		}
		_, err := CreateProfile(state, tx.From, p.DisplayName, p.Bio, ctx.Height)
		return err
	case CallSetHandle:
		var p SetHandlePayload
		if err := decodePayload(tx.Payload, &p); err != nil {
			return err
		}
		_, err := SetHandle(state, tx.From, p.Handle)
		return err
	case CallAwardXP:
		return award(ctx, state, AddGnosisXP)
	case CallAwardScore:
		return award(ctx, state, AddSyzygyScore)
	default:
		return errors.Wrapf(runtime.ErrUnknownCall, "%s: %q", ModuleID, tx.CallID)
	}
}

// award applies an archon-granted increase and refreshes the derived
// progression of the target.
func award(ctx *runtime.Context, state runtime.State, add func(runtime.State, types.Address, uint64) error) error {
	archon, err := IsArchon(state, ctx.Tx.From)
	if err != nil {
		return err
	}
	if !archon {
		return errors.Wrapf(ErrNotArchon, "address %s", ctx.Tx.From)
	}

	var p AwardPayload
	if err := decodePayload(ctx.Tx.Payload, &p); err != nil {
		return err
	}
	if err := add(state, p.Target, p.Amount); err != nil {
		return err
	}
	if err := RecomputeAscension(state, p.Target); err != nil {
		return err
	}
	if err := UpdateBadges(state, p.Target); err != nil {
		return err
	}
	ctx.Logger.Debug("Awarded", "target", p.Target, "amount", p.Amount)
	return nil
}

func decodePayload(payload []byte, v interface{}) error {
	if len(payload) == 0 {
		return errors.Wrap(ErrInvalidPayload, "empty payload")
	}
	if err := jsoniter.Unmarshal(payload, v); err != nil {
		return errors.Wrap(ErrInvalidPayload, err.Error())
	}
	return nil
}
