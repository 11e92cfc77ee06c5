// Package timestamp records the block time, set once per block by an
// inherent.
package timestamp

import (
	"errors"
	"fmt"
	"math"

	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

const ModuleName = "Timestamp"

// MaxTimestampDriftMillis is how far a block's time may run ahead of
// the checking node's clock.
const MaxTimestampDriftMillis = 30_000

var (
	now    = storage.NewValue[types.Moment](ModuleName, "Now")
	didSet = storage.NewValue[bool](ModuleName, "DidUpdate")
)

var (
	ErrAlreadySet = frame.NewError(ModuleName, 0, "AlreadySet")
	ErrTooEarly   = frame.NewError(ModuleName, 1, "TooEarly")
	ErrNotSet     = errors.New("timestamp must be set once per block")
)

// Observer is told the block time after it is set.
type Observer interface {
	OnTimestampSet(ctx *frame.Context, now types.Moment) error
}

type Config struct {
	// MinimumPeriod is the minimum gap between consecutive block
	// times, in milliseconds.
	MinimumPeriod types.Moment
	OnSet         Observer
}

func DefaultConfig() Config {
	return Config{MinimumPeriod: 3000}
}

type SetArgs struct {
	Now types.Moment `cramberry:"1"`
}

type Module struct {
	frame.Base
	cfg Config
}

var _ frame.InherentProvider = (*Module)(nil)

func New(cfg Config) *Module {
	m := &Module{cfg: cfg}
	m.Base = frame.NewBase(ModuleName, frame.Spec{
		Calls: []frame.CallSpec{
			frame.NewCall("set", frame.NoneOrigin, frame.Weigh[SetArgs](9_000_000, types.Mandatory), m.set),
		},
		Errors:    []*frame.ModuleError{ErrAlreadySet, ErrTooEarly},
		Constants: []frame.Constant{frame.NewConstant("MinimumPeriod", cfg.MinimumPeriod)},
		Storage:   []frame.Item{now, didSet},
	})
	return m
}

// Now returns the time of the current block.
func (m *Module) Now(r storage.Reader) types.Moment { return now.Load(r) }

func (m *Module) set(ctx *frame.Context, _ frame.Origin, a SetArgs) (types.PostDispatchInfo, error) {
	if didSet.Load(ctx.Store) {
		return frame.Fail(ErrAlreadySet)
	}
	prev := now.Load(ctx.Store)
	if prev != 0 && a.Now < saturatingAdd(prev, m.cfg.MinimumPeriod) {
		return frame.Fail(ErrTooEarly)
	}
	now.Put(ctx.Store, a.Now)
	didSet.Put(ctx.Store, true)
	if m.cfg.OnSet != nil {
		if err := m.cfg.OnSet.OnTimestampSet(ctx, a.Now); err != nil {
			return frame.Fail(err)
		}
	}
	return frame.Ok()
}

func (m *Module) OnFinalize(ctx *frame.Context, _ types.BlockNumber) error {
	if _, ok := didSet.Take(ctx.Store); !ok {
		return ErrNotSet
	}
	return nil
}

func (m *Module) InherentIdentifier() types.InherentIdentifier { return types.TimestampInherent }

func (m *Module) CreateInherent(data *types.InherentData) (string, any, bool) {
	t, err := data.Uint64(types.TimestampInherent)
	if err != nil {
		return "", nil, false
	}
	return "set", SetArgs{Now: types.Moment(t)}, true
}

func (m *Module) IsInherent(function string) bool { return function == "set" }

// CheckInherent accepts a block time at most MaxTimestampDriftMillis
// ahead of the supplied time and at least MinimumPeriod after the
// previous block.
func (m *Module) CheckInherent(ctx *frame.Context, call frame.CallView, data *types.InherentData) error {
	t, ok := DecodeSet(call)
	if !ok {
		return nil
	}
	supplied, err := data.Uint64(types.TimestampInherent)
	if err != nil {
		return types.InherentError{Identifier: types.TimestampInherent, Fatal: true, Message: err.Error()}
	}
	if limit := saturatingAdd(types.Moment(supplied), MaxTimestampDriftMillis); t > limit {
		return types.InherentError{
			Identifier: types.TimestampInherent,
			Message:    fmt.Sprintf("TooFarInFuture: %d > %d", t, limit),
		}
	}
	if prev := now.Load(ctx.Store); prev != 0 && t < saturatingAdd(prev, m.cfg.MinimumPeriod) {
		return types.InherentError{
			Identifier: types.TimestampInherent,
			Fatal:      true,
			Message:    fmt.Sprintf("TooEarly: %d < %d", t, saturatingAdd(prev, m.cfg.MinimumPeriod)),
		}
	}
	return nil
}

func saturatingAdd(a, b types.Moment) types.Moment {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// DecodeSet returns the time carried by a timestamp set call.
func DecodeSet(call frame.CallView) (types.Moment, bool) {
	if call.Module != ModuleName || call.Function != "set" {
		return 0, false
	}
	var a SetArgs
	if err := types.Decode(call.Args, &a); err != nil {
		return 0, false
	}
	return a.Now, true
}
