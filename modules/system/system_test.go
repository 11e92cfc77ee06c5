package system_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/rtcore/crypto"
	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/modules/system"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

var alice = crypto.Dev("Alice").Account()

type fixture struct {
	rt  *frame.Runtime
	sys *system.Module
	ctx *frame.Context
}

func newFixture(t *testing.T, cfg system.Config) *fixture {
	t.Helper()
	sys := system.New(cfg)
	rt, err := frame.NewRuntime(frame.Config{
		Version:    types.RuntimeVersion{SpecName: "system-test", SpecVersion: 3, TransactionVersion: 2},
		Extensions: sys.Extensions(),
	}, sys)
	require.NoError(t, err)
	ctx := rt.NewContext(context.Background(), storage.NewOverlay(storage.Empty()))
	require.NoError(t, rt.BuildGenesis(ctx))
	return &fixture{rt: rt, sys: sys, ctx: ctx}
}

// parent is the hash the fixture uses for block n.
func parent(n types.BlockNumber) types.Hash { return types.Hash{0xbb, byte(n)} }

// run initializes and finalizes blocks 1..n.
func (f *fixture) run(n types.BlockNumber) types.Header {
	var h types.Header
	for i := types.BlockNumber(1); i <= n; i++ {
		f.sys.InitializeBlock(f.ctx, &types.Header{Number: i, ParentHash: parent(i - 1)})
		f.sys.NoteFinishedInitialize(f.ctx)
		f.sys.NoteFinishedExtrinsics(f.ctx)
		h = f.sys.FinalizeBlock(f.ctx)
	}
	return h
}

func invalidKind(t *testing.T, err error) types.InvalidTransaction {
	t.Helper()
	var tve *types.TransactionValidityError
	require.True(t, errors.As(err, &tve), "want a validity error, got %v", err)
	k, ok := tve.InvalidKind()
	require.True(t, ok)
	return k
}

func (f *fixture) signed(nonce uint32, era types.Era, checkpoint types.Hash) *frame.TxInfo {
	genesis, _ := f.sys.BlockHash(f.ctx.Store, 0)
	who := alice
	return &frame.TxInfo{
		Signer: &who,
		Extra: &types.SignedExtra{
			SpecVersion:    3,
			TxVersion:      2,
			GenesisHash:    genesis,
			Era:            era,
			CheckpointHash: checkpoint,
			Nonce:          nonce,
		},
		Info:   types.DispatchInfo{Weight: 1_000, Class: types.Normal},
		Length: 100,
		Source: types.SourceExternal,
	}
}

func TestGenesisPlaceholder(t *testing.T) {
	f := newFixture(t, system.DefaultConfig())
	g, ok := f.sys.BlockHash(f.ctx.Store, 0)
	require.True(t, ok)
	for _, b := range g {
		require.Equal(t, byte(69), b)
	}
	require.Equal(t, g, f.sys.ParentHash(f.ctx.Store))
	require.Empty(t, f.sys.Events(f.ctx.Store), "no events outside a block")
}

func TestFinalizeBlockPrunesHashes(t *testing.T) {
	cfg := system.DefaultConfig()
	cfg.BlockHashCount = 2
	f := newFixture(t, cfg)

	h := f.run(5)
	require.Equal(t, types.BlockNumber(5), h.Number)
	require.Equal(t, parent(4), h.ParentHash)

	// Block n drops the hash of block n-3.
	for _, n := range []types.BlockNumber{1, 2} {
		_, ok := f.sys.BlockHash(f.ctx.Store, n)
		require.False(t, ok, "block %d", n)
	}
	for n := types.BlockNumber(3); n <= 4; n++ {
		got, ok := f.sys.BlockHash(f.ctx.Store, n)
		require.True(t, ok, "block %d", n)
		require.Equal(t, parent(n), got)
	}
}

func TestExtensionOrder(t *testing.T) {
	sys := system.New(system.DefaultConfig())
	require.Equal(t,
		[]string{"CheckSpecVersion", "CheckTxVersion", "CheckGenesis", "CheckMortality", "CheckNonce", "CheckWeight"},
		sys.Extensions().Identifiers())
}

func TestVersionAndGenesisChecks(t *testing.T) {
	f := newFixture(t, system.DefaultConfig())
	exts := f.sys.Extensions()
	g, _ := f.sys.BlockHash(f.ctx.Store, 0)

	tx := f.signed(0, types.Immortal(), g)
	_, err := exts.Validate(f.ctx, tx)
	require.NoError(t, err)

	tx.Extra.SpecVersion = 2
	_, err = exts.Validate(f.ctx, tx)
	require.Equal(t, types.InvalidStale, invalidKind(t, err))
	tx.Extra.SpecVersion = 4
	_, err = exts.Validate(f.ctx, tx)
	require.Equal(t, types.InvalidFuture, invalidKind(t, err))

	tx = f.signed(0, types.Immortal(), g)
	tx.Extra.TxVersion = 1
	_, err = exts.Validate(f.ctx, tx)
	require.Equal(t, types.InvalidMalformed, invalidKind(t, err))

	tx = f.signed(0, types.Immortal(), g)
	tx.Extra.GenesisHash = types.Hash{1}
	_, err = exts.Validate(f.ctx, tx)
	require.Equal(t, types.InvalidWrongChain, invalidKind(t, err))
}

func TestCheckEra(t *testing.T) {
	f := newFixture(t, system.DefaultConfig())
	f.run(3)
	f.sys.InitializeBlock(f.ctx, &types.Header{Number: 4, ParentHash: parent(3)})
	ext := system.CheckEra{}
	for _, e := range f.sys.Extensions() {
		if c, ok := e.(system.CheckEra); ok {
			ext = c
		}
	}

	v, err := ext.Validate(f.ctx, f.signed(0, types.Mortal(2, 8), parent(2)))
	require.NoError(t, err)
	require.Equal(t, uint64(10-4), v.Longevity)

	_, err = ext.Validate(f.ctx, f.signed(0, types.Mortal(2, 8), parent(3)))
	require.Equal(t, types.InvalidOutdated, invalidKind(t, err), "checkpoint hash mismatch")

	_, err = ext.Validate(f.ctx, f.signed(0, types.Mortal(1, 2), parent(1)))
	require.Equal(t, types.InvalidOutdated, invalidKind(t, err), "era ended")

	_, err = ext.Validate(f.ctx, f.signed(0, types.Mortal(9, 8), parent(9)))
	require.Equal(t, types.InvalidFuture, invalidKind(t, err))
}

func TestCheckEraPrunedBirth(t *testing.T) {
	cfg := system.DefaultConfig()
	cfg.BlockHashCount = 2
	f := newFixture(t, cfg)
	f.run(5)
	f.sys.InitializeBlock(f.ctx, &types.Header{Number: 6, ParentHash: parent(5)})
	var ext system.CheckEra
	for _, e := range f.sys.Extensions() {
		if c, ok := e.(system.CheckEra); ok {
			ext = c
		}
	}
	_, ok := f.sys.BlockHash(f.ctx.Store, 1)
	require.False(t, ok)

	// Still inside its era, but the birth hash is gone.
	_, err := ext.Validate(f.ctx, f.signed(0, types.Mortal(1, 64), parent(1)))
	require.Equal(t, types.InvalidAncientBirthBlock, invalidKind(t, err))
	require.Equal(t, types.InvalidAncientBirthBlock, invalidKind(t, ext.PreDispatch(f.ctx, f.signed(0, types.Mortal(1, 64), parent(1)))))

	_, err = ext.Validate(f.ctx, f.signed(0, types.Mortal(4, 64), parent(4)))
	require.NoError(t, err)
}

func TestCheckNonce(t *testing.T) {
	f := newFixture(t, system.DefaultConfig())
	f.run(1)
	var ext system.CheckNonce
	for _, e := range f.sys.Extensions() {
		if c, ok := e.(system.CheckNonce); ok {
			ext = c
		}
	}
	g, _ := f.sys.BlockHash(f.ctx.Store, 0)

	v, err := ext.Validate(f.ctx, f.signed(0, types.Immortal(), g))
	require.NoError(t, err)
	require.Equal(t, [][]byte{system.NonceTag(alice, 0)}, v.Provides)
	require.Empty(t, v.Requires)

	v, err = ext.Validate(f.ctx, f.signed(2, types.Immortal(), g))
	require.NoError(t, err)
	require.Equal(t, [][]byte{system.NonceTag(alice, 1)}, v.Requires)

	inBlock := f.signed(2, types.Immortal(), g)
	inBlock.Source = types.SourceInBlock
	_, err = ext.Validate(f.ctx, inBlock)
	require.Equal(t, types.InvalidFuture, invalidKind(t, err))

	require.NoError(t, ext.PreDispatch(f.ctx, f.signed(0, types.Immortal(), g)))
	require.Equal(t, uint32(1), f.sys.AccountNonce(f.ctx.Store, alice))
	require.Equal(t, types.InvalidStale, invalidKind(t, ext.PreDispatch(f.ctx, f.signed(0, types.Immortal(), g))))
	require.Equal(t, types.InvalidFuture, invalidKind(t, ext.PreDispatch(f.ctx, f.signed(5, types.Immortal(), g))))

	_, err = ext.Validate(f.ctx, &frame.TxInfo{})
	require.NoError(t, err, "unsigned extrinsics carry no nonce")
}

func TestCheckWeight(t *testing.T) {
	f := newFixture(t, system.DefaultConfig())
	f.run(1)
	f.sys.InitializeBlock(f.ctx, &types.Header{Number: 2, ParentHash: parent(1)})
	var ext system.CheckWeight
	for _, e := range f.sys.Extensions() {
		if c, ok := e.(system.CheckWeight); ok {
			ext = c
		}
	}
	w := f.sys.Weights()

	tx := &frame.TxInfo{Info: types.DispatchInfo{Weight: 5_000, Class: types.Normal}, Length: 10}
	v, err := ext.Validate(f.ctx, tx)
	require.NoError(t, err)
	require.Equal(t, uint64(5_000), v.Priority)

	require.NoError(t, ext.PreDispatch(f.ctx, tx))
	require.Equal(t, uint32(10), f.sys.AllExtrinsicsLen(f.ctx.Store))
	require.Equal(t, types.Weight(5_000).SaturatingAdd(w.ExtrinsicBase), f.sys.BlockWeight(f.ctx.Store).Get(types.Normal))

	// Only 1_000 of the estimate was used.
	actual := types.Weight(1_000)
	require.NoError(t, ext.PostDispatch(f.ctx, tx, types.PostDispatchInfo{ActualWeight: &actual}, nil))
	require.Equal(t, types.Weight(1_000).SaturatingAdd(w.ExtrinsicBase), f.sys.BlockWeight(f.ctx.Store).Get(types.Normal))

	huge := &frame.TxInfo{Info: types.DispatchInfo{Weight: w.MaxBlock, Class: types.Normal}}
	_, err = ext.Validate(f.ctx, huge)
	require.Equal(t, types.InvalidExhaustsResources, invalidKind(t, err))

	// Over the single extrinsic cap but inside the Normal block budget.
	before := f.sys.BlockWeight(f.ctx.Store)
	capped := &frame.TxInfo{Info: types.DispatchInfo{Weight: w.MaxExtrinsic + 1, Class: types.Normal}}
	total, _ := w.MaxTotal(types.Normal)
	require.Less(t, capped.Info.Weight+w.ExtrinsicBase+before.Get(types.Normal), total)
	require.Equal(t, types.InvalidExhaustsResources, invalidKind(t, ext.PreDispatch(f.ctx, capped)))
	require.Equal(t, before, f.sys.BlockWeight(f.ctx.Store))

	long := &frame.TxInfo{Info: types.DispatchInfo{Class: types.Normal}, Length: f.sys.Length().Max + 1}
	require.Equal(t, types.InvalidExhaustsResources, invalidKind(t, ext.PreDispatch(f.ctx, long)))

	// Mandatory extrinsics ignore the length limit.
	mandatory := &frame.TxInfo{Info: types.DispatchInfo{Class: types.Mandatory}, Length: f.sys.Length().Max + 1}
	v, err = ext.Validate(f.ctx, mandatory)
	require.NoError(t, err)
	require.Equal(t, ^uint64(0), v.Priority)
}

func TestStorageCalls(t *testing.T) {
	f := newFixture(t, system.DefaultConfig())
	f.run(1)
	root := func(fn string, args any) {
		_, err := f.rt.Dispatch(f.ctx, f.rt.MustCall(system.ModuleName, fn, args), frame.Root())
		require.NoError(t, err)
	}

	root("set_storage", system.SetStorageArgs{Items: []system.KeyValue{
		{Key: []byte("p/a"), Value: []byte("1")},
		{Key: []byte("p/b"), Value: []byte("2")},
		{Key: []byte("q"), Value: []byte("3")},
	}})
	root("kill_storage", system.KillStorageArgs{Keys: [][]byte{[]byte("q")}})
	root("kill_prefix", system.KillPrefixArgs{Prefix: []byte("p/")})
	for _, k := range []string{"p/a", "p/b", "q"} {
		_, ok := f.ctx.Store.Get([]byte(k))
		require.False(t, ok, k)
	}

	_, err := f.rt.Dispatch(f.ctx, f.rt.MustCall(system.ModuleName, "set_storage", system.SetStorageArgs{}), frame.Signed(alice))
	require.ErrorIs(t, err, frame.ErrBadOrigin)
}

func TestRemark(t *testing.T) {
	f := newFixture(t, system.DefaultConfig())
	f.sys.InitializeBlock(f.ctx, &types.Header{Number: 1, ParentHash: parent(0)})
	f.sys.NoteFinishedInitialize(f.ctx)

	remark := f.rt.MustCall(system.ModuleName, "remark", system.RemarkArgs{Remark: []byte("hello")})
	_, err := f.rt.Dispatch(f.ctx, remark, frame.None())
	require.ErrorIs(t, err, frame.ErrBadOrigin)
	_, err = f.rt.Dispatch(f.ctx, remark, frame.Signed(alice))
	require.NoError(t, err)

	evs := f.sys.Events(f.ctx.Store)
	require.Len(t, evs, 1)
	require.Equal(t, system.EventRemarked, evs[0].Event.Variant)
	require.Equal(t, types.ApplyExtrinsicPhase(0), evs[0].Phase)
	var r system.Remarked
	require.NoError(t, types.Decode(evs[0].Event.Data, &r))
	require.Equal(t, alice, r.Sender)
}
