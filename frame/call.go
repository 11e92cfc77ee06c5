package frame

import (
	"fmt"
	"reflect"

	"github.com/blockberries/rtcore/types"
)

// CallSpec is one dispatchable function of a module.
type CallSpec struct {
	Name   string
	Origin OriginFilter
	// Args describes the argument struct for metadata.
	Args []Field
	// Info returns the pre-dispatch estimate for encoded args.
	Info func(args []byte) (types.DispatchInfo, error)
	// Call decodes args and runs the function.
	Call func(ctx *Context, origin Origin, args []byte) (types.PostDispatchInfo, error)
}

// NewCall builds a CallSpec whose arguments are the cramberry encoding
// of A.
func NewCall[A any](
	name string,
	origin OriginFilter,
	weigh func(A) types.DispatchInfo,
	fn func(ctx *Context, origin Origin, args A) (types.PostDispatchInfo, error),
) CallSpec {
	return CallSpec{
		Name:   name,
		Origin: origin,
		Args:   fieldsOf(reflect.TypeFor[A]()),
		Info: func(bz []byte) (types.DispatchInfo, error) {
			a, err := decodeArgs[A](name, bz)
			if err != nil {
				return types.DispatchInfo{}, err
			}
			return weigh(a), nil
		},
		Call: func(ctx *Context, o Origin, bz []byte) (types.PostDispatchInfo, error) {
			a, err := decodeArgs[A](name, bz)
			if err != nil {
				return types.PostDispatchInfo{}, err
			}
			return fn(ctx, o, a)
		},
	}
}

func decodeArgs[A any](name string, bz []byte) (A, error) {
	var a A
	if err := types.Decode(bz, &a); err != nil {
		return a, fmt.Errorf("%w: %s: %v", ErrUndecodableCall, name, err)
	}
	return a, nil
}

// Weigh returns a weight function with a fixed estimate.
func Weigh[A any](w types.Weight, class types.DispatchClass) func(A) types.DispatchInfo {
	return func(A) types.DispatchInfo {
		return types.DispatchInfo{Weight: w, Class: class}
	}
}

// Ok is the result of a call whose estimate was exact.
func Ok() (types.PostDispatchInfo, error) { return types.PostDispatchInfo{}, nil }

// Fail is the result of a failed call.
func Fail(err error) (types.PostDispatchInfo, error) { return types.PostDispatchInfo{}, err }

// NoArgs is the argument struct of calls without arguments.
type NoArgs struct{}
