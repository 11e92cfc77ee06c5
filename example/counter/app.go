// Package counter is a minimal runtime: System plus one module that
// counts increments. It serves only the required runtime interfaces.
package counter

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/executive"
	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/modules/system"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// Compile-time interface check.
var _ rtcore.Runtime = (*App)(nil)

const ModuleName = "Counter"

// Event variants.
const (
	EventIncremented uint8 = iota
)

type Incremented struct {
	Who   types.AccountID `cramberry:"1"`
	By    uint64          `cramberry:"2"`
	Total uint64          `cramberry:"3"`
}

var (
	// Count holds the counter value.
	Count       = storage.NewValue[uint64](ModuleName, "Count")
	ErrZero     = frame.NewError(ModuleName, 0, "Zero")
	ErrOverflow = frame.NewError(ModuleName, 1, "Overflow")
)

type IncrementArgs struct {
	By uint64 `cramberry:"1"`
}

// Module counts signed increments.
type Module struct {
	frame.Base
}

func NewModule() *Module {
	m := &Module{}
	m.Base = frame.NewBase(ModuleName, frame.Spec{
		Calls: []frame.CallSpec{
			frame.NewCall("increment", frame.SignedOrigin,
				frame.Weigh[IncrementArgs](10_000_000, types.Normal), m.increment),
		},
		Events:  []frame.EventSpec{frame.NewEvent[Incremented]("Incremented")},
		Errors:  []*frame.ModuleError{ErrZero, ErrOverflow},
		Storage: []frame.Item{Count},
	})
	return m
}

func (m *Module) increment(ctx *frame.Context, origin frame.Origin, a IncrementArgs) (types.PostDispatchInfo, error) {
	who, err := origin.EnsureSigned()
	if err != nil {
		return frame.Fail(err)
	}
	if a.By == 0 {
		return frame.Fail(ErrZero)
	}
	total := Count.Load(ctx.Store)
	if total > math.MaxUint64-a.By {
		return frame.Fail(ErrOverflow)
	}
	total += a.By
	Count.Put(ctx.Store, total)
	ctx.DepositEvent(ModuleName, EventIncremented, Incremented{Who: who, By: a.By, Total: total})
	return frame.Ok()
}

// Count returns the counter value in r.
func (m *Module) Count(r storage.Reader) uint64 { return Count.Load(r) }

// App is the counter runtime.
type App struct {
	*executive.API
	System  *system.Module
	Counter *Module
}

// New returns the counter runtime.
func New(log *zap.Logger) (*App, error) {
	sys := system.New(system.DefaultConfig())
	c := NewModule()
	rt, err := frame.NewRuntime(frame.Config{
		Version: types.RuntimeVersion{
			SpecName:           "counter",
			ImplName:           "counter",
			SpecVersion:        1,
			ImplVersion:        1,
			TransactionVersion: 1,
		},
		Extensions: sys.Extensions(),
		Logger:     log,
	}, sys, c)
	if err != nil {
		return nil, fmt.Errorf("counter: %w", err)
	}
	return &App{API: executive.NewAPI(rt, executive.Options{}), System: sys, Counter: c}, nil
}

// IncrementCall returns the call that adds by to the counter.
func (app *App) IncrementCall(by uint64) types.Call {
	return app.Frame().MustCall(ModuleName, "increment", IncrementArgs{By: by})
}
