// Package rttest provides test utilities for runtime development: a
// configurable mock runtime, a test harness and a compliance test
// suite.
package rttest

import (
	"context"
	"sync/atomic"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// Compile-time interface checks.
var (
	_ rtcore.Runtime      = (*MockRuntime)(nil)
	_ rtcore.BlockBuilder = (*MockBuilder)(nil)
)

// MockRuntime is a configurable mock runtime for server and transport
// testing. All methods are configurable via function fields.
// Unconfigured methods return sensible zero-value defaults: blocks
// execute to their own header and every extrinsic succeeds.
type MockRuntime struct {
	VersionValue types.RuntimeVersion

	// Configurable handlers. If nil, defaults are used.
	BuildGenesisFn        func(context.Context) (rtcore.BlockResult, error)
	ExecuteBlockFn        func(context.Context, storage.Snapshot, types.Block) (rtcore.BlockResult, error)
	InitializeBlockFn     func(context.Context, storage.Snapshot, types.Header) (rtcore.BlockBuilder, error)
	MetadataFn            func(context.Context) (types.OpaqueMetadata, error)
	InherentExtrinsicsFn  func(context.Context, storage.Snapshot, types.InherentData) ([]types.Extrinsic, error)
	CheckInherentsFn      func(context.Context, storage.Snapshot, types.Block, types.InherentData) (types.CheckInherentsResult, error)
	RandomSeedFn          func(context.Context, storage.Snapshot) (types.Hash, error)
	ValidateTransactionFn func(context.Context, storage.Snapshot, types.TransactionSource, types.Extrinsic) (types.TransactionValidity, error)

	// Call counters (atomic for concurrent access).
	ExecuteBlockCalls        atomic.Int64
	InitializeBlockCalls     atomic.Int64
	ValidateTransactionCalls atomic.Int64
}

func (m *MockRuntime) Version() types.RuntimeVersion {
	if m.VersionValue.SpecName == "" {
		return types.RuntimeVersion{SpecName: "mock", ImplName: "mock", SpecVersion: 1, TransactionVersion: 1}
	}
	return m.VersionValue
}

func (m *MockRuntime) BuildGenesis(ctx context.Context) (rtcore.BlockResult, error) {
	if m.BuildGenesisFn != nil {
		return m.BuildGenesisFn(ctx)
	}
	return rtcore.BlockResult{
		Changes: storage.ChangeSet{{Key: []byte("mock"), Value: []byte("genesis")}},
	}, nil
}

func (m *MockRuntime) ExecuteBlock(ctx context.Context, parent storage.Snapshot, block types.Block) (rtcore.BlockResult, error) {
	m.ExecuteBlockCalls.Add(1)
	if m.ExecuteBlockFn != nil {
		return m.ExecuteBlockFn(ctx, parent, block)
	}
	return rtcore.BlockResult{Header: block.Header}, nil
}

func (m *MockRuntime) InitializeBlock(ctx context.Context, parent storage.Snapshot, header types.Header) (rtcore.BlockBuilder, error) {
	m.InitializeBlockCalls.Add(1)
	if m.InitializeBlockFn != nil {
		return m.InitializeBlockFn(ctx, parent, header)
	}
	return &MockBuilder{Header: header}, nil
}

func (m *MockRuntime) Metadata(ctx context.Context) (types.OpaqueMetadata, error) {
	if m.MetadataFn != nil {
		return m.MetadataFn(ctx)
	}
	return types.OpaqueMetadata("mock"), nil
}

func (m *MockRuntime) InherentExtrinsics(ctx context.Context, at storage.Snapshot, data types.InherentData) ([]types.Extrinsic, error) {
	if m.InherentExtrinsicsFn != nil {
		return m.InherentExtrinsicsFn(ctx, at, data)
	}
	return nil, nil
}

func (m *MockRuntime) CheckInherents(ctx context.Context, at storage.Snapshot, block types.Block, data types.InherentData) (types.CheckInherentsResult, error) {
	if m.CheckInherentsFn != nil {
		return m.CheckInherentsFn(ctx, at, block, data)
	}
	return types.NewCheckInherentsResult(), nil
}

func (m *MockRuntime) RandomSeed(ctx context.Context, at storage.Snapshot) (types.Hash, error) {
	if m.RandomSeedFn != nil {
		return m.RandomSeedFn(ctx, at)
	}
	return at.Block(), nil
}

func (m *MockRuntime) ValidateTransaction(ctx context.Context, at storage.Snapshot, source types.TransactionSource, xt types.Extrinsic) (types.TransactionValidity, error) {
	m.ValidateTransactionCalls.Add(1)
	if m.ValidateTransactionFn != nil {
		return m.ValidateTransactionFn(ctx, at, source, xt)
	}
	v := types.DefaultValidTransaction()
	return types.TransactionValidity{Valid: &v}, nil
}

// MockBuilder records applied extrinsics and finalizes to its header
// with the applied count as the extrinsics root's first byte.
type MockBuilder struct {
	Header  types.Header
	Applied []types.Extrinsic

	ApplyExtrinsicFn func(context.Context, types.Extrinsic) (types.ApplyExtrinsicResult, error)
}

func (b *MockBuilder) ApplyExtrinsic(ctx context.Context, xt types.Extrinsic) (types.ApplyExtrinsicResult, error) {
	if b.ApplyExtrinsicFn != nil {
		return b.ApplyExtrinsicFn(ctx, xt)
	}
	b.Applied = append(b.Applied, xt)
	return types.ApplyExtrinsicResult{}, nil
}

func (b *MockBuilder) FinalizeBlock(context.Context) (rtcore.BlockResult, error) {
	h := b.Header
	h.ExtrinsicsRoot[0] = byte(len(b.Applied))
	return rtcore.BlockResult{Header: h}, nil
}
