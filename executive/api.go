package executive

import (
	"context"

	"go.uber.org/zap"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// Options configures an API.
type Options struct {
	// Randomness serves RandomSeed. Nil makes RandomSeed unsupported.
	Randomness frame.RandomnessSource
}

// API serves the required runtime interfaces for a composed runtime.
// Runtimes embed it and add the optional interfaces they support.
type API struct {
	rt     *frame.Runtime
	random frame.RandomnessSource
	log    *zap.Logger
}

var _ rtcore.Runtime = (*API)(nil)

// NewAPI returns the API of rt.
func NewAPI(rt *frame.Runtime, opts Options) *API {
	return &API{rt: rt, random: opts.Randomness, log: rt.Logger()}
}

// Frame returns the composed runtime.
func (a *API) Frame() *frame.Runtime { return a.rt }

func (a *API) Version() types.RuntimeVersion { return a.rt.Version() }

// BlockWeight returns the weight consumed by the block whose post-state
// is r.
func (a *API) BlockWeight(r storage.Reader) types.Weight {
	return a.rt.System().BlockWeight(r).Total()
}

func (a *API) BuildGenesis(ctx context.Context) (rtcore.BlockResult, error) {
	res, err := BuildGenesis(ctx, a.rt)
	if err != nil {
		return res, err
	}
	a.log.Debug("build_genesis",
		zap.Stringer("hash", res.Hash()),
		zap.Stringer("state_root", res.Header.StateRoot))
	return res, nil
}

func (a *API) ExecuteBlock(ctx context.Context, parent storage.Snapshot, block types.Block) (rtcore.BlockResult, error) {
	res, err := ExecuteBlock(ctx, a.rt, parent, &block)
	if err != nil {
		a.log.Debug("execute_block failed",
			zap.Stringer("at", parent.Block()),
			zap.Uint32("number", uint32(block.Header.Number)),
			zap.Error(err))
		return res, err
	}
	a.log.Debug("execute_block",
		zap.Stringer("at", parent.Block()),
		zap.Uint32("number", uint32(block.Header.Number)),
		zap.Int("extrinsics", len(block.Extrinsics)),
		zap.Stringer("state_root", res.Header.StateRoot))
	return res, nil
}

func (a *API) InitializeBlock(ctx context.Context, parent storage.Snapshot, header types.Header) (rtcore.BlockBuilder, error) {
	a.log.Debug("initialize_block",
		zap.Stringer("at", parent.Block()),
		zap.Uint32("number", uint32(header.Number)))
	e := New(a.rt, parent)
	if err := e.InitializeBlock(ctx, header); err != nil {
		return nil, err
	}
	return e, nil
}

func (a *API) Metadata(context.Context) (types.OpaqueMetadata, error) {
	return a.rt.OpaqueMetadata(), nil
}

func (a *API) InherentExtrinsics(_ context.Context, at storage.Snapshot, data types.InherentData) ([]types.Extrinsic, error) {
	a.log.Debug("inherent_extrinsics", zap.Stringer("at", at.Block()), zap.Int("entries", len(data.Entries)))
	return a.rt.InherentExtrinsics(&data)
}

func (a *API) CheckInherents(ctx context.Context, at storage.Snapshot, block types.Block, data types.InherentData) (types.CheckInherentsResult, error) {
	res := CheckInherents(ctx, a.rt, at, &block, &data)
	a.log.Debug("check_inherents",
		zap.Stringer("at", at.Block()),
		zap.Bool("okay", res.Okay),
		zap.Bool("fatal", res.FatalError))
	return res, nil
}

func (a *API) RandomSeed(_ context.Context, at storage.Snapshot) (types.Hash, error) {
	if a.random == nil {
		return types.Hash{}, rtcore.ErrUnsupported
	}
	return a.random.Random(at, nil), nil
}

func (a *API) ValidateTransaction(ctx context.Context, at storage.Snapshot, source types.TransactionSource, xt types.Extrinsic) (types.TransactionValidity, error) {
	res := ValidateTransaction(ctx, a.rt, at, source, &xt)
	if res.Error != nil {
		a.log.Debug("validate_transaction",
			zap.Stringer("at", at.Block()),
			zap.Stringer("source", source),
			zap.Error(res.Error))
	} else {
		a.log.Debug("validate_transaction",
			zap.Stringer("at", at.Block()),
			zap.Stringer("source", source),
			zap.Uint64("priority", res.Valid.Priority))
	}
	return res, nil
}
