// Package sudo lets a single key dispatch calls as root.
package sudo

import (
	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

const ModuleName = "Sudo"

// Event variants.
const (
	EventSudid uint8 = iota
	EventKeyChanged
	EventSudoAsDone
)

// Sudid reports the outcome of a root dispatch. Result is nil on
// success.
type Sudid struct {
	Result *types.DispatchError `cramberry:"1"`
}

type KeyChanged struct {
	Old types.AccountID `cramberry:"1"`
}

type SudoAsDone struct {
	Result *types.DispatchError `cramberry:"1"`
}

var ErrRequireSudo = frame.NewError(ModuleName, 0, "RequireSudo")

var key = storage.NewValue[types.AccountID](ModuleName, "Key")

type Config struct {
	// Key is the genesis sudo key.
	Key types.AccountID
}

type SudoArgs struct {
	Call types.Call `cramberry:"1"`
}

type SudoUncheckedWeightArgs struct {
	Call   types.Call   `cramberry:"1"`
	Weight types.Weight `cramberry:"2"`
}

type SetKeyArgs struct {
	New types.AccountID `cramberry:"1"`
}

type SudoAsArgs struct {
	Who  types.AccountID `cramberry:"1"`
	Call types.Call      `cramberry:"2"`
}

type Module struct {
	frame.Base
	cfg Config
	rt  *frame.Runtime
}

var (
	_ frame.Binder         = (*Module)(nil)
	_ frame.GenesisBuilder = (*Module)(nil)
)

func New(cfg Config) *Module {
	m := &Module{cfg: cfg}
	m.Base = frame.NewBase(ModuleName, frame.Spec{
		Calls: []frame.CallSpec{
			frame.NewCall("sudo", frame.SignedOrigin, m.weighSudo, m.sudo),
			frame.NewCall("sudo_unchecked_weight", frame.SignedOrigin, weighUnchecked, m.sudoUncheckedWeight),
			frame.NewCall("set_key", frame.SignedOrigin, frame.Weigh[SetKeyArgs](10_000_000, types.Normal), m.setKey),
			frame.NewCall("sudo_as", frame.SignedOrigin, m.weighSudoAs, m.sudoAs),
		},
		Events: []frame.EventSpec{
			frame.NewEvent[Sudid]("Sudid"),
			frame.NewEvent[KeyChanged]("KeyChanged"),
			frame.NewEvent[SudoAsDone]("SudoAsDone"),
		},
		Errors:  []*frame.ModuleError{ErrRequireSudo},
		Storage: []frame.Item{key},
	})
	return m
}

func (m *Module) Bind(rt *frame.Runtime) { m.rt = rt }

func (m *Module) BuildGenesis(ctx *frame.Context) error {
	key.Put(ctx.Store, m.cfg.Key)
	return nil
}

// Key returns the current sudo key.
func (m *Module) Key(r storage.Reader) types.AccountID { return key.Load(r) }

func (m *Module) ensureSudo(ctx *frame.Context, origin frame.Origin) error {
	if origin.Who != key.Load(ctx.Store) {
		return ErrRequireSudo
	}
	return nil
}

func (m *Module) inner(call types.Call) types.DispatchInfo {
	info, err := m.rt.DispatchInfo(call)
	if err != nil {
		return types.DispatchInfo{}
	}
	return info
}

// wrapped weighs a signed call around inner. A signed extrinsic never
// carries the Mandatory class, so an inner inherent is charged as
// Operational.
func wrapped(inner types.DispatchInfo) types.DispatchInfo {
	class := inner.Class
	if class == types.Mandatory {
		class = types.Operational
	}
	return types.DispatchInfo{Weight: inner.Weight.SaturatingAdd(10_000_000), Class: class}
}

func (m *Module) weighSudo(a SudoArgs) types.DispatchInfo {
	return wrapped(m.inner(a.Call))
}

func weighUnchecked(a SudoUncheckedWeightArgs) types.DispatchInfo {
	return types.DispatchInfo{Weight: a.Weight}
}

func (m *Module) weighSudoAs(a SudoAsArgs) types.DispatchInfo {
	return wrapped(m.inner(a.Call))
}

// result runs a nested call. Its failure is reported in an event, not
// returned, so the sudo call itself succeeds.
func (m *Module) result(ctx *frame.Context, call types.Call, origin frame.Origin) *types.DispatchError {
	_, err := ctx.Dispatch(call, origin)
	return m.rt.DispatchError(err)
}

func (m *Module) sudo(ctx *frame.Context, origin frame.Origin, a SudoArgs) (types.PostDispatchInfo, error) {
	if err := m.ensureSudo(ctx, origin); err != nil {
		return frame.Fail(err)
	}
	res := m.result(ctx, a.Call, frame.Root())
	ctx.DepositEvent(ModuleName, EventSudid, Sudid{Result: res})
	return types.PostDispatchInfo{PaysFee: types.PaysNo}, nil
}

func (m *Module) sudoUncheckedWeight(ctx *frame.Context, origin frame.Origin, a SudoUncheckedWeightArgs) (types.PostDispatchInfo, error) {
	if err := m.ensureSudo(ctx, origin); err != nil {
		return frame.Fail(err)
	}
	res := m.result(ctx, a.Call, frame.Root())
	ctx.DepositEvent(ModuleName, EventSudid, Sudid{Result: res})
	return types.PostDispatchInfo{PaysFee: types.PaysNo}, nil
}

func (m *Module) setKey(ctx *frame.Context, origin frame.Origin, a SetKeyArgs) (types.PostDispatchInfo, error) {
	if err := m.ensureSudo(ctx, origin); err != nil {
		return frame.Fail(err)
	}
	old := key.Load(ctx.Store)
	key.Put(ctx.Store, a.New)
	ctx.DepositEvent(ModuleName, EventKeyChanged, KeyChanged{Old: old})
	return types.PostDispatchInfo{PaysFee: types.PaysNo}, nil
}

func (m *Module) sudoAs(ctx *frame.Context, origin frame.Origin, a SudoAsArgs) (types.PostDispatchInfo, error) {
	if err := m.ensureSudo(ctx, origin); err != nil {
		return frame.Fail(err)
	}
	res := m.result(ctx, a.Call, frame.Signed(a.Who))
	ctx.DepositEvent(ModuleName, EventSudoAsDone, SudoAsDone{Result: res})
	return types.PostDispatchInfo{PaysFee: types.PaysNo}, nil
}
