package frame

import "github.com/blockberries/rtcore/types"

// TxInfo is what the validity checks see of an extrinsic. Signer and
// Extra are nil for unsigned extrinsics.
type TxInfo struct {
	Signer *types.AccountID
	Extra  *types.SignedExtra
	Call   types.Call
	Info   types.DispatchInfo
	Length uint32
	Source types.TransactionSource
}

// SignedExtension is one link of the extrinsic validity chain.
type SignedExtension interface {
	Identifier() string
	// Validate checks tx for the pool without side effects.
	Validate(ctx *Context, tx *TxInfo) (types.ValidTransaction, error)
	// PreDispatch checks tx inside a block and applies its side
	// effects.
	PreDispatch(ctx *Context, tx *TxInfo) error
}

// PostDispatcher is implemented by extensions that settle after the
// call has run.
type PostDispatcher interface {
	PostDispatch(ctx *Context, tx *TxInfo, post types.PostDispatchInfo, dispatchErr error) error
}

// Extensions is an ordered validity chain. Checks run in order and
// the first failure wins.
type Extensions []SignedExtension

// Validate runs every check in pool mode and combines the results.
func (e Extensions) Validate(ctx *Context, tx *TxInfo) (types.ValidTransaction, error) {
	out := types.DefaultValidTransaction()
	for _, ext := range e {
		v, err := ext.Validate(ctx, tx)
		if err != nil {
			return types.ValidTransaction{}, err
		}
		out = out.Combine(v)
	}
	return out, nil
}

// PreDispatch runs every check in block mode.
func (e Extensions) PreDispatch(ctx *Context, tx *TxInfo) error {
	for _, ext := range e {
		if err := ext.PreDispatch(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

// PostDispatch settles every extension that needs it.
func (e Extensions) PostDispatch(ctx *Context, tx *TxInfo, post types.PostDispatchInfo, dispatchErr error) error {
	for _, ext := range e {
		if p, ok := ext.(PostDispatcher); ok {
			if err := p.PostDispatch(ctx, tx, post, dispatchErr); err != nil {
				return err
			}
		}
	}
	return nil
}

// Identifiers lists the extension identifiers in order.
func (e Extensions) Identifiers() []string {
	out := make([]string, len(e))
	for i, ext := range e {
		out[i] = ext.Identifier()
	}
	return out
}
