package executive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// ExecuteBlock re-executes block on parent. Seals are ignored. Any
// rejected extrinsic, a misplaced inherent or a computed header that
// differs from the supplied one fails the block with a
// *rtcore.BlockError.
func ExecuteBlock(ctx context.Context, rt *frame.Runtime, parent storage.Snapshot, block *types.Block) (rtcore.BlockResult, error) {
	want := block.Header
	want.Digest = want.Digest.WithoutSeals()
	n := want.Number

	if root := rt.Hasher().OrderedRoot(block.EncodedExtrinsics()); root != want.ExtrinsicsRoot {
		return rtcore.BlockResult{}, rtcore.NewBlockError(n,
			fmt.Sprintf("extrinsics root %s, computed %s", want.ExtrinsicsRoot, root), nil)
	}
	if err := inherentsFirst(rt, block); err != nil {
		return rtcore.BlockResult{}, rtcore.NewBlockError(n, err.Error(), nil)
	}

	e := New(rt, parent)
	if err := e.InitializeBlock(ctx, types.Header{
		ParentHash: want.ParentHash,
		Number:     n,
		Digest:     preRuntimeOnly(want.Digest),
	}); err != nil {
		return rtcore.BlockResult{}, err
	}
	for i, xt := range block.Extrinsics {
		if err := ctx.Err(); err != nil {
			return rtcore.BlockResult{}, err
		}
		res, err := e.ApplyExtrinsic(ctx, xt)
		if err != nil {
			return rtcore.BlockResult{}, err
		}
		if res.Validity != nil {
			return rtcore.BlockResult{}, rtcore.NewBlockError(n, fmt.Sprintf("extrinsic %d", i), res.Validity)
		}
	}
	res, err := e.FinalizeBlock(ctx)
	if err != nil {
		return rtcore.BlockResult{}, err
	}

	got := res.Header
	switch {
	case got.StateRoot != want.StateRoot:
		return rtcore.BlockResult{}, rtcore.NewBlockError(n,
			fmt.Sprintf("state root %s, computed %s", want.StateRoot, got.StateRoot), nil)
	case !bytes.Equal(types.MustEncode(&got), types.MustEncode(&want)):
		return rtcore.BlockResult{}, rtcore.NewBlockError(n, "header differs from computed header", nil)
	}
	return res, nil
}

// inherentsFirst checks that no inherent follows another extrinsic.
func inherentsFirst(rt *frame.Runtime, block *types.Block) error {
	seenOther := false
	for i := range block.Extrinsics {
		xt := &block.Extrinsics[i]
		inherent := !xt.IsSigned() && rt.IsInherent(xt.Call)
		if inherent && seenOther {
			return fmt.Errorf("inherent extrinsic %d follows a non-inherent", i)
		}
		seenOther = seenOther || !inherent
	}
	return nil
}

// preRuntimeOnly keeps the digest items the author supplies before
// execution. Everything else is deposited by the runtime itself.
func preRuntimeOnly(d types.Digest) types.Digest {
	var out types.Digest
	for _, it := range d.Logs {
		if it.Kind == types.DigestPreRuntime {
			out.Push(it)
		}
	}
	return out
}

// BuildGenesis runs every module's genesis builder over the empty
// state and returns the genesis header and state.
func BuildGenesis(ctx context.Context, rt *frame.Runtime) (rtcore.BlockResult, error) {
	base := storage.Empty()
	overlay := storage.NewOverlay(base)
	if err := rt.BuildGenesis(rt.NewContext(ctx, overlay)); err != nil {
		return rtcore.BlockResult{}, err
	}
	changes := overlay.Changes()
	header := types.Header{
		StateRoot:      rt.Hasher().StorageRoot(base, changes),
		ExtrinsicsRoot: rt.Hasher().OrderedRoot(nil),
	}
	return rtcore.BlockResult{Header: header, Changes: changes}, nil
}
