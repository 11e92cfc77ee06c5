package frame

import (
	"errors"
	"fmt"

	"github.com/blockberries/rtcore/types"
)

// InherentProvider is implemented by modules that create inherent
// extrinsics from block-author-supplied data.
type InherentProvider interface {
	InherentIdentifier() types.InherentIdentifier
	// CreateInherent returns the call to include for data, if any.
	CreateInherent(data *types.InherentData) (function string, args any, ok bool)
	// IsInherent reports whether function is one of the module's
	// inherent calls.
	IsInherent(function string) bool
	// CheckInherent checks an inherent call of the block against data.
	// Providers are shown every inherent call, not only their own.
	CheckInherent(ctx *Context, call CallView, data *types.InherentData) error
}

// InherentExtrinsics builds the inherent extrinsics for data in module
// order.
func (r *Runtime) InherentExtrinsics(data *types.InherentData) ([]types.Extrinsic, error) {
	var out []types.Extrinsic
	for _, m := range r.modules {
		p, ok := m.(InherentProvider)
		if !ok {
			continue
		}
		fn, args, ok := p.CreateInherent(data)
		if !ok {
			continue
		}
		call, err := r.NewCall(m.Name(), fn, args)
		if err != nil {
			return nil, fmt.Errorf("create %s inherent: %w", m.Name(), err)
		}
		out = append(out, types.NewUnsigned(call))
	}
	return out, nil
}

// IsInherent reports whether call is an inherent call.
func (r *Runtime) IsInherent(call types.Call) bool {
	if int(call.Module) >= len(r.modules) {
		return false
	}
	m := r.modules[call.Module]
	p, ok := m.(InherentProvider)
	if !ok {
		return false
	}
	spec, ok := m.Call(call.Function)
	return ok && p.IsInherent(spec.Name)
}

// CheckInherents checks the leading inherent extrinsics of block
// against data. It stops at the first extrinsic that is not an
// inherent.
func (r *Runtime) CheckInherents(ctx *Context, block *types.Block, data *types.InherentData) types.CheckInherentsResult {
	res := types.NewCheckInherentsResult()
	for _, xt := range block.Extrinsics {
		if xt.IsSigned() || !r.IsInherent(xt.Call) {
			break
		}
		view, err := r.View(xt.Call)
		if err != nil {
			break
		}
		for _, m := range r.modules {
			p, ok := m.(InherentProvider)
			if !ok {
				continue
			}
			if err := p.CheckInherent(ctx, view, data); err != nil {
				res.Add(asInherentError(p.InherentIdentifier(), err))
			}
		}
	}
	return res
}

func asInherentError(id types.InherentIdentifier, err error) types.InherentError {
	var ie types.InherentError
	if errors.As(err, &ie) {
		return ie
	}
	return types.InherentError{Identifier: id, Fatal: true, Message: err.Error()}
}
