// Package executive drives block execution: it initializes a block,
// applies extrinsics under the validity chain and the block budgets,
// finalizes the header and computes the state root. It also serves
// the per-snapshot queries of the transaction pool and block authors.
package executive

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/crypto"
	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// Executive builds or executes one block on top of a parent state.
// It is single-use and not safe for concurrent use; calls out of
// order fail with ErrWrongPhase.
type Executive struct {
	rt      *frame.Runtime
	sys     frame.System
	parent  storage.Snapshot
	overlay *storage.Overlay
	number  types.BlockNumber
	guard   guard
}

var _ rtcore.BlockBuilder = (*Executive)(nil)

// New returns an executive over parent. parent must stay valid until
// the executive is done.
func New(rt *frame.Runtime, parent storage.Snapshot) *Executive {
	return &Executive{
		rt:      rt,
		sys:     rt.System(),
		parent:  parent,
		overlay: storage.NewOverlay(parent),
	}
}

func (e *Executive) context(ctx context.Context) *frame.Context {
	return e.rt.NewContext(ctx, e.overlay)
}

// InitializeBlock checks header against the parent state, records it
// and runs the initialization hooks. On error the executive may be
// initialized again.
func (e *Executive) InitializeBlock(ctx context.Context, header types.Header) error {
	if err := e.guard.acquire("InitializeBlock", phaseUninitialized); err != nil {
		return err
	}
	if err := e.initialize(e.context(ctx), &header); err != nil {
		e.guard.release(phaseUninitialized)
		return err
	}
	e.guard.release(phaseInitialized)
	return nil
}

func (e *Executive) initialize(fctx *frame.Context, header *types.Header) error {
	if header.ParentHash != e.parent.Block() {
		return rtcore.NewBlockError(header.Number,
			fmt.Sprintf("parent %s is not the state's block %s", header.ParentHash, e.parent.Block()), nil)
	}
	if want := e.sys.BlockNumber(e.parent) + 1; header.Number != want {
		return rtcore.NewBlockError(header.Number, fmt.Sprintf("number does not follow parent #%d", want-1), nil)
	}
	e.number = header.Number
	e.sys.InitializeBlock(fctx, header)
	hooks := e.rt.Initialize(fctx, header.Number)
	e.sys.RegisterExtraWeight(fctx, e.sys.Weights().BaseBlock.SaturatingAdd(hooks), types.Mandatory)
	e.sys.NoteFinishedInitialize(fctx)
	fctx.Logger().Debug("block initialized",
		zap.Uint32("number", uint32(header.Number)),
		zap.Stringer("parent", header.ParentHash),
		zap.Uint64("hook_weight", uint64(hooks)))
	return nil
}

// ApplyExtrinsic applies xt. A validity failure rolls back every
// effect of xt and is reported in the result. A failed call is still
// applied: its nonce and weight stay while its own effects roll back.
func (e *Executive) ApplyExtrinsic(ctx context.Context, xt types.Extrinsic) (types.ApplyExtrinsicResult, error) {
	if err := e.guard.acquire("ApplyExtrinsic", phaseInitialized); err != nil {
		return types.ApplyExtrinsicResult{}, err
	}
	res, err := e.apply(e.context(ctx), &xt)
	if err != nil {
		e.guard.release(phaseFinalized)
		return res, err
	}
	e.guard.release(phaseInitialized)
	return res, nil
}

func (e *Executive) apply(fctx *frame.Context, xt *types.Extrinsic) (types.ApplyExtrinsicResult, error) {
	var dispatchErr *types.DispatchError
	err := e.overlay.Transactional(func() error {
		var err error
		dispatchErr, err = e.applyInner(fctx, xt)
		return err
	})
	if err != nil {
		if v, ok := types.AsValidityError(err); ok {
			fctx.Logger().Debug("extrinsic rejected",
				zap.Uint32("number", uint32(e.number)),
				zap.Stringer("hash", xt.Hash()),
				zap.Error(v))
			return types.ApplyExtrinsicResult{Validity: v}, nil
		}
		return types.ApplyExtrinsicResult{}, err
	}
	return types.ApplyExtrinsicResult{Dispatch: dispatchErr}, nil
}

func (e *Executive) applyInner(fctx *frame.Context, xt *types.Extrinsic) (*types.DispatchError, error) {
	encoded := xt.Encode()
	tx, err := checkExtrinsic(e.rt, xt, len(encoded), types.SourceInBlock)
	if err != nil {
		return nil, err
	}

	exts := e.rt.Extensions()
	origin := frame.None()
	if tx.Signer != nil {
		origin = frame.Signed(*tx.Signer)
	} else if !e.rt.IsInherent(xt.Call) {
		if _, err := e.rt.ValidateUnsigned(fctx, types.SourceInBlock, xt.Call); err != nil {
			return nil, err
		}
	}
	if err := exts.PreDispatch(fctx, tx); err != nil {
		return nil, err
	}

	e.sys.NoteExtrinsic(fctx, encoded)
	post, callErr := e.rt.Dispatch(fctx, xt.Call, origin)
	if callErr != nil && tx.Info.Class == types.Mandatory {
		fctx.Logger().Warn("mandatory call failed", zap.Error(callErr))
		return nil, types.Invalid(types.InvalidBadMandatory)
	}
	if err := exts.PostDispatch(fctx, tx, post, callErr); err != nil {
		return nil, err
	}

	actual := tx.Info
	actual.Weight = post.ActualWeightOf(tx.Info)
	if post.PaysFee == types.PaysNo {
		actual.PaysFee = types.PaysNo
	}
	dispatchErr := e.rt.DispatchError(callErr)
	e.sys.NoteAppliedExtrinsic(fctx, dispatchErr, actual)
	return dispatchErr, nil
}

// checkExtrinsic runs the checks every extrinsic passes before the
// extension chain: format, signature and call lookup.
func checkExtrinsic(rt *frame.Runtime, xt *types.Extrinsic, length int, source types.TransactionSource) (*frame.TxInfo, error) {
	if xt.Version != types.ExtrinsicVersion {
		return nil, types.Invalid(types.InvalidCall)
	}
	tx := &frame.TxInfo{Call: xt.Call, Length: uint32(length), Source: source}
	if xt.IsSigned() {
		if err := crypto.VerifyExtrinsic(xt); err != nil {
			return nil, types.Invalid(types.InvalidBadProof)
		}
		signer, extra := xt.Signature.Signer, xt.Signature.Extra
		tx.Signer, tx.Extra = &signer, &extra
	}
	info, err := rt.DispatchInfo(xt.Call)
	if err != nil {
		return nil, types.Invalid(types.InvalidCall)
	}
	tx.Info = info
	return tx, nil
}

// FinalizeBlock runs the finalization hooks in reverse module order,
// completes the header and computes the state root. The executive
// cannot be used afterwards.
func (e *Executive) FinalizeBlock(ctx context.Context) (rtcore.BlockResult, error) {
	if err := e.guard.acquire("FinalizeBlock", phaseInitialized); err != nil {
		return rtcore.BlockResult{}, err
	}
	defer e.guard.release(phaseFinalized)

	fctx := e.context(ctx)
	e.sys.NoteFinishedExtrinsics(fctx)
	if err := e.rt.Finalize(fctx, e.number); err != nil {
		return rtcore.BlockResult{}, rtcore.NewBlockError(e.number, "finalization", err)
	}
	header := e.sys.FinalizeBlock(fctx)
	changes := e.overlay.Changes()
	header.StateRoot = e.rt.Hasher().StorageRoot(e.parent, changes)

	fctx.Logger().Debug("block finalized",
		zap.Uint32("number", uint32(header.Number)),
		zap.Stringer("state_root", header.StateRoot),
		zap.Stringer("extrinsics_root", header.ExtrinsicsRoot),
		zap.Int("changes", len(changes)))
	return rtcore.BlockResult{Header: header, Changes: changes}, nil
}
