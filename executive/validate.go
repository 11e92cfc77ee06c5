package executive

import (
	"context"

	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// ValidateTransaction checks xt for the transaction pool as if it were
// included in the block after at. Its scratch state is discarded.
func ValidateTransaction(ctx context.Context, rt *frame.Runtime, at storage.Snapshot, source types.TransactionSource, xt *types.Extrinsic) types.TransactionValidity {
	v, err := validate(ctx, rt, at, source, xt)
	if err != nil {
		verr, ok := types.AsValidityError(err)
		if !ok {
			verr = types.Invalid(types.InvalidCall)
		}
		return types.TransactionValidity{Error: verr}
	}
	return types.TransactionValidity{Valid: &v}
}

func validate(ctx context.Context, rt *frame.Runtime, at storage.Snapshot, source types.TransactionSource, xt *types.Extrinsic) (types.ValidTransaction, error) {
	fctx := inspect(ctx, rt, at)

	tx, err := checkExtrinsic(rt, xt, len(xt.Encode()), source)
	if err != nil {
		return types.ValidTransaction{}, err
	}
	if tx.Info.Class == types.Mandatory {
		return types.ValidTransaction{}, types.Invalid(types.InvalidMandatoryDispatch)
	}

	valid, err := rt.Extensions().Validate(fctx, tx)
	if err != nil {
		return types.ValidTransaction{}, err
	}
	if tx.Signer != nil {
		return valid, nil
	}
	unsigned, err := rt.ValidateUnsigned(fctx, source, xt.Call)
	if err != nil {
		return types.ValidTransaction{}, err
	}
	return valid.Combine(unsigned), nil
}

// inspect returns a context over a throwaway overlay of at, set up as
// the start of the next block so that the previous block's hash is
// visible to the checks.
func inspect(ctx context.Context, rt *frame.Runtime, at storage.Snapshot) *frame.Context {
	fctx := rt.NewContext(ctx, storage.NewOverlay(at))
	sys := rt.System()
	sys.InitializeBlock(fctx, &types.Header{
		ParentHash: at.Block(),
		Number:     sys.BlockNumber(at) + 1,
	})
	return fctx
}

// CheckInherents checks the inherents of block against data. at is
// the parent state of block.
func CheckInherents(ctx context.Context, rt *frame.Runtime, at storage.Snapshot, block *types.Block, data *types.InherentData) types.CheckInherentsResult {
	fctx := rt.NewContext(ctx, storage.NewOverlay(at))
	return rt.CheckInherents(fctx, block, data)
}
