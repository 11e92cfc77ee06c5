package frame

import (
	"fmt"
	"reflect"

	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// Module is a self-contained unit of runtime logic. Modules are
// registered with NewRuntime; a module's index is its position there.
type Module interface {
	Name() string
	// OnInitialize runs at the start of every block, in registration
	// order, and returns the weight it consumed.
	OnInitialize(ctx *Context, n types.BlockNumber) types.Weight
	// OnFinalize runs after the last extrinsic, in reverse
	// registration order.
	OnFinalize(ctx *Context, n types.BlockNumber) error
	// Dispatch runs function fn with encoded args.
	Dispatch(ctx *Context, fn uint8, args []byte, origin Origin) (types.PostDispatchInfo, error)
	// DispatchInfo returns the pre-dispatch estimate of fn.
	DispatchInfo(fn uint8, args []byte) (types.DispatchInfo, error)
	// Call returns the spec of function fn.
	Call(fn uint8) (CallSpec, bool)
	// CallIndex returns the index of the named function.
	CallIndex(name string) (uint8, bool)
	Metadata() ModuleMetadata
}

// Field describes one field of an argument or event struct.
type Field struct {
	Name string `cbor:"name"`
	Type string `cbor:"type"`
}

// EventSpec describes one event variant. Its variant index is its
// position in Spec.Events.
type EventSpec struct {
	Name   string
	Fields []Field
}

// NewEvent describes an event whose payload is E.
func NewEvent[E any](name string) EventSpec {
	return EventSpec{Name: name, Fields: fieldsOf(reflect.TypeFor[E]())}
}

// Constant is a module parameter exposed in metadata.
type Constant struct {
	Name  string `cbor:"name"`
	Type  string `cbor:"type"`
	Value []byte `cbor:"value"`
}

// NewConstant encodes v as a metadata constant.
func NewConstant[T any](name string, v T) Constant {
	return Constant{Name: name, Type: fmt.Sprintf("%T", v), Value: types.MustEncode(constant[T]{V: v})}
}

type constant[T any] struct {
	V T `cramberry:"1"`
}

// Item is a storage item declared by a module.
type Item interface {
	Entry() storage.Entry
}

// Spec is the static description of a module.
type Spec struct {
	Calls     []CallSpec
	Events    []EventSpec
	Errors    []*ModuleError
	Constants []Constant
	Storage   []Item
}

// Base implements the table-driven parts of Module. Modules embed it
// and override the hooks they need.
type Base struct {
	name  string
	spec  Spec
	index map[string]uint8
}

// NewBase builds a Base from a spec.
func NewBase(name string, spec Spec) Base {
	b := Base{name: name, spec: spec, index: make(map[string]uint8, len(spec.Calls))}
	for i, c := range spec.Calls {
		if _, dup := b.index[c.Name]; dup {
			panic(fmt.Sprintf("frame: module %s declares call %q twice", name, c.Name))
		}
		b.index[c.Name] = uint8(i)
	}
	return b
}

func (b *Base) Name() string { return b.name }

func (b *Base) OnInitialize(*Context, types.BlockNumber) types.Weight { return 0 }

func (b *Base) OnFinalize(*Context, types.BlockNumber) error { return nil }

func (b *Base) Call(fn uint8) (CallSpec, bool) {
	if int(fn) >= len(b.spec.Calls) {
		return CallSpec{}, false
	}
	return b.spec.Calls[fn], true
}

func (b *Base) CallIndex(name string) (uint8, bool) {
	i, ok := b.index[name]
	return i, ok
}

func (b *Base) Dispatch(ctx *Context, fn uint8, args []byte, origin Origin) (types.PostDispatchInfo, error) {
	c, ok := b.Call(fn)
	if !ok {
		return types.PostDispatchInfo{}, fmt.Errorf("%w: %s function %d", ErrUnknownCall, b.name, fn)
	}
	return c.Call(ctx, origin, args)
}

func (b *Base) DispatchInfo(fn uint8, args []byte) (types.DispatchInfo, error) {
	c, ok := b.Call(fn)
	if !ok {
		return types.DispatchInfo{}, fmt.Errorf("%w: %s function %d", ErrUnknownCall, b.name, fn)
	}
	return c.Info(args)
}

func (b *Base) Metadata() ModuleMetadata {
	md := ModuleMetadata{Name: b.name}
	for _, it := range b.spec.Storage {
		md.Storage = append(md.Storage, it.Entry())
	}
	for _, c := range b.spec.Calls {
		md.Calls = append(md.Calls, CallMetadata{Name: c.Name, Origin: c.Origin.String(), Args: c.Args})
	}
	for _, e := range b.spec.Events {
		md.Events = append(md.Events, EventMetadata{Name: e.Name, Fields: e.Fields})
	}
	for _, e := range b.spec.Errors {
		md.Errors = append(md.Errors, e.Name)
	}
	md.Constants = append(md.Constants, b.spec.Constants...)
	return md
}

// Module capabilities, discovered by type assertion.

// Binder is implemented by modules that need the assembled runtime,
// for example to dispatch nested calls or weigh them.
type Binder interface {
	Bind(rt *Runtime)
}

// GenesisBuilder is implemented by modules with genesis state.
type GenesisBuilder interface {
	BuildGenesis(ctx *Context) error
}

// UnsignedValidator is implemented by modules that accept unsigned
// extrinsics other than inherents.
type UnsignedValidator interface {
	ValidateUnsigned(ctx *Context, source types.TransactionSource, call CallView) (types.ValidTransaction, error)
}

// CallView is a decoded-name view of a call.
type CallView struct {
	Module   string
	Function string
	Args     []byte
}

func fieldsOf(t reflect.Type) []Field {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return []Field{{Name: "value", Type: t.String()}}
	}
	out := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		out = append(out, Field{Name: f.Name, Type: f.Type.String()})
	}
	return out
}
