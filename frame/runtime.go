// Package frame composes independently written modules into one
// runtime: an ordered registry with call dispatch, event tagging,
// lifecycle hooks, inherent handling and metadata.
package frame

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// Config configures a Runtime.
type Config struct {
	Version types.RuntimeVersion
	// Extensions is the signed extrinsic validity chain.
	Extensions Extensions
	// Hasher computes state and extrinsics roots. Defaults to
	// storage.FlatRoot.
	Hasher storage.RootHasher
	Logger *zap.Logger
}

// Runtime is an ordered set of modules behind one dispatch surface.
type Runtime struct {
	cfg     Config
	log     *zap.Logger
	modules []Module
	index   map[string]uint8
	system  System
}

// NewRuntime registers modules in order. The first module must
// implement System and names must be unique.
func NewRuntime(cfg Config, modules ...Module) (*Runtime, error) {
	if len(modules) == 0 {
		return nil, errors.New("frame: no modules")
	}
	if len(modules) > 256 {
		return nil, errors.New("frame: more than 256 modules")
	}
	sys, ok := modules[0].(System)
	if !ok {
		return nil, fmt.Errorf("frame: first module %s does not implement System", modules[0].Name())
	}
	if cfg.Hasher == nil {
		cfg.Hasher = storage.FlatRoot{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	r := &Runtime{
		cfg:     cfg,
		log:     cfg.Logger,
		modules: modules,
		index:   make(map[string]uint8, len(modules)),
		system:  sys,
	}
	for i, m := range modules {
		if _, dup := r.index[m.Name()]; dup {
			return nil, fmt.Errorf("frame: duplicate module %s", m.Name())
		}
		r.index[m.Name()] = uint8(i)
	}
	for _, m := range modules {
		if b, ok := m.(Binder); ok {
			b.Bind(r)
		}
	}
	r.log.Debug("runtime assembled",
		zap.String("spec", cfg.Version.SpecName),
		zap.Uint32("spec_version", cfg.Version.SpecVersion),
		zap.Int("modules", len(modules)))
	return r, nil
}

func (r *Runtime) Version() types.RuntimeVersion { return r.cfg.Version }

func (r *Runtime) Extensions() Extensions { return r.cfg.Extensions }

func (r *Runtime) Hasher() storage.RootHasher { return r.cfg.Hasher }

func (r *Runtime) Logger() *zap.Logger { return r.log }

func (r *Runtime) System() System { return r.system }

// Modules returns the registered modules in order.
func (r *Runtime) Modules() []Module { return r.modules }

// Module returns the named module and its index.
func (r *Runtime) Module(name string) (Module, uint8, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, 0, false
	}
	return r.modules[i], i, true
}

// NewCall builds the call of module's function with args.
func (r *Runtime) NewCall(module, function string, args any) (types.Call, error) {
	m, idx, ok := r.Module(module)
	if !ok {
		return types.Call{}, fmt.Errorf("%w: module %s", ErrUnknownCall, module)
	}
	fn, ok := m.CallIndex(function)
	if !ok {
		return types.Call{}, fmt.Errorf("%w: %s.%s", ErrUnknownCall, module, function)
	}
	bz, err := types.Encode(args)
	if err != nil {
		return types.Call{}, fmt.Errorf("encode %s.%s: %w", module, function, err)
	}
	return types.Call{Module: idx, Function: fn, Args: bz}, nil
}

// MustCall is NewCall for statically known calls.
func (r *Runtime) MustCall(module, function string, args any) types.Call {
	c, err := r.NewCall(module, function, args)
	if err != nil {
		panic(err)
	}
	return c
}

func (r *Runtime) lookup(call types.Call) (Module, CallSpec, error) {
	if int(call.Module) >= len(r.modules) {
		return nil, CallSpec{}, fmt.Errorf("%w: module %d", ErrUnknownCall, call.Module)
	}
	m := r.modules[call.Module]
	spec, ok := m.Call(call.Function)
	if !ok {
		return nil, CallSpec{}, fmt.Errorf("%w: %s function %d", ErrUnknownCall, m.Name(), call.Function)
	}
	return m, spec, nil
}

// View resolves the names of call.
func (r *Runtime) View(call types.Call) (CallView, error) {
	m, spec, err := r.lookup(call)
	if err != nil {
		return CallView{}, err
	}
	return CallView{Module: m.Name(), Function: spec.Name, Args: call.Args}, nil
}

// DispatchInfo returns the pre-dispatch estimate of call. It fails for
// unknown calls and undecodable arguments.
func (r *Runtime) DispatchInfo(call types.Call) (types.DispatchInfo, error) {
	m, _, err := r.lookup(call)
	if err != nil {
		return types.DispatchInfo{}, err
	}
	return m.DispatchInfo(call.Function, call.Args)
}

// Dispatch runs call as origin in its own storage layer. When the call
// fails, its writes and events are discarded.
func (r *Runtime) Dispatch(ctx *Context, call types.Call, origin Origin) (types.PostDispatchInfo, error) {
	m, spec, err := r.lookup(call)
	if err != nil {
		return types.PostDispatchInfo{}, err
	}
	if !spec.Origin.Allows(origin) {
		return types.PostDispatchInfo{}, ErrBadOrigin
	}
	var post types.PostDispatchInfo
	err = ctx.Transactional(func() error {
		var err error
		post, err = m.Dispatch(ctx, call.Function, call.Args, origin)
		return err
	})
	return post, err
}

// DispatchError converts a call failure into its wire form.
func (r *Runtime) DispatchError(err error) *types.DispatchError {
	if err == nil {
		return nil
	}
	var me *ModuleError
	switch {
	case errors.As(err, &me):
		idx, ok := r.index[me.Module]
		if !ok {
			return &types.DispatchError{Kind: types.DispatchOther, Message: err.Error()}
		}
		return &types.DispatchError{Kind: types.DispatchModule, Module: idx, Index: me.Index, Message: me.Name}
	case errors.Is(err, ErrBadOrigin):
		return &types.DispatchError{Kind: types.DispatchBadOrigin}
	case errors.Is(err, ErrCannotLookup):
		return &types.DispatchError{Kind: types.DispatchCannotLookup}
	default:
		return &types.DispatchError{Kind: types.DispatchOther, Message: err.Error()}
	}
}

// Initialize runs OnInitialize of every module in order and returns
// the total weight.
func (r *Runtime) Initialize(ctx *Context, n types.BlockNumber) types.Weight {
	var total types.Weight
	for _, m := range r.modules {
		total = total.SaturatingAdd(m.OnInitialize(ctx, n))
	}
	return total
}

// Finalize runs OnFinalize of every module in reverse order.
func (r *Runtime) Finalize(ctx *Context, n types.BlockNumber) error {
	for i := len(r.modules) - 1; i >= 0; i-- {
		if err := r.modules[i].OnFinalize(ctx, n); err != nil {
			return fmt.Errorf("%s on_finalize: %w", r.modules[i].Name(), err)
		}
	}
	return nil
}

// BuildGenesis writes the genesis state of every module in order.
func (r *Runtime) BuildGenesis(ctx *Context) error {
	for _, m := range r.modules {
		g, ok := m.(GenesisBuilder)
		if !ok {
			continue
		}
		if err := g.BuildGenesis(ctx); err != nil {
			return fmt.Errorf("%s genesis: %w", m.Name(), err)
		}
	}
	return nil
}

// ValidateUnsigned asks the call's module whether an unsigned,
// non-inherent call is acceptable.
func (r *Runtime) ValidateUnsigned(ctx *Context, source types.TransactionSource, call types.Call) (types.ValidTransaction, error) {
	m, spec, err := r.lookup(call)
	if err != nil {
		return types.ValidTransaction{}, types.Invalid(types.InvalidCall)
	}
	v, ok := m.(UnsignedValidator)
	if !ok {
		return types.ValidTransaction{}, types.Unknown(types.UnknownNoUnsignedValidator)
	}
	return v.ValidateUnsigned(ctx, source, CallView{Module: m.Name(), Function: spec.Name, Args: call.Args})
}
