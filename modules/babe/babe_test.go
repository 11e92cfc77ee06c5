package babe_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/rtcore/crypto"
	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/modules/babe"
	"github.com/blockberries/rtcore/modules/system"
	"github.com/blockberries/rtcore/modules/timestamp"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

const (
	babeIndex     = 1
	epochDuration = 10
	slotDuration  = 6000
)

var genesisRandomness = types.Hash{0x42}

type fixture struct {
	rt   *frame.Runtime
	sys  *system.Module
	babe *babe.Module
	ctx  *frame.Context
}

type handler struct{ offender types.AuthorityID }

func (h handler) HandleEquivocation(*frame.Context, types.EquivocationProof, types.KeyOwnershipProof) (types.AuthorityID, error) {
	return h.offender, nil
}

func newFixture(t *testing.T, eq babe.EquivocationHandler) *fixture {
	t.Helper()
	sys := system.New(system.DefaultConfig())
	cfg := babe.DefaultConfig()
	cfg.SlotDuration = slotDuration
	cfg.EpochDuration = epochDuration
	cfg.Authorities = []types.Authority{{ID: types.AuthorityID(crypto.Dev("Alice").Account()), Weight: 1}}
	cfg.Randomness = genesisRandomness
	cfg.Chain = sys
	cfg.Digest = sys
	cfg.TimestampOf = timestamp.DecodeSet
	cfg.Equivocation = eq
	b := babe.New(cfg)

	rt, err := frame.NewRuntime(frame.Config{Version: types.RuntimeVersion{SpecName: "babe-test"}}, sys, b)
	require.NoError(t, err)
	ctx := rt.NewContext(context.Background(), storage.NewOverlay(storage.Empty()))
	require.NoError(t, rt.BuildGenesis(ctx))
	return &fixture{rt: rt, sys: sys, babe: b, ctx: ctx}
}

// block runs block n claimed at slot and returns the next-epoch
// announcements it deposited.
func (f *fixture) block(t *testing.T, n types.BlockNumber, slot types.Slot, primary bool) []types.NextEpochDescriptor {
	t.Helper()
	var d types.Digest
	d.Push(types.DigestItem{
		Kind:   types.DigestPreRuntime,
		Engine: types.BabeEngineID,
		Data:   types.MustEncode(types.BabePreDigest{Slot: slot, Primary: primary, VRFOutput: types.Hash{byte(slot)}}),
	})
	f.sys.InitializeBlock(f.ctx, &types.Header{Number: n, Digest: d})
	f.babe.OnInitialize(f.ctx, n)
	f.sys.NoteFinishedInitialize(f.ctx)
	require.NoError(t, f.babe.OnFinalize(f.ctx, n))

	var out []types.NextEpochDescriptor
	for _, it := range f.sys.Digest(f.ctx.Store).Logs {
		if it.Kind != types.DigestConsensus || it.Engine != types.BabeEngineID {
			continue
		}
		var log types.ConsensusLog
		require.NoError(t, types.Decode(it.Data, &log))
		require.Equal(t, types.LogNextEpochData, log.Kind)
		out = append(out, *log.NextEpoch)
	}
	return out
}

func TestGenesisNeedsAuthorities(t *testing.T) {
	sys := system.New(system.DefaultConfig())
	rt, err := frame.NewRuntime(frame.Config{Version: types.RuntimeVersion{SpecName: "t"}}, sys,
		babe.New(babe.Config{Chain: sys, Digest: sys, SlotDuration: 1, EpochDuration: 1}))
	require.NoError(t, err)
	require.Error(t, rt.BuildGenesis(rt.NewContext(context.Background(), storage.NewOverlay(storage.Empty()))))
}

func TestFirstBlockFixesGenesisSlot(t *testing.T) {
	f := newFixture(t, nil)

	announced := f.block(t, 1, 100, true)
	require.Len(t, announced, 1)
	require.Equal(t, genesisRandomness, announced[0].Randomness)
	require.Equal(t, types.Slot(100), f.babe.CurrentEpochStart(f.ctx.Store))
	require.Equal(t, types.Slot(100), f.babe.CurrentSlot(f.ctx.Store))
	require.Zero(t, f.babe.EpochIndex(f.ctx.Store))

	// Later blocks in the epoch announce nothing.
	require.Empty(t, f.block(t, 2, 105, false))

	cfg := f.babe.Configuration(f.ctx.Store)
	require.Equal(t, uint64(slotDuration), cfg.SlotDuration)
	require.Equal(t, uint64(epochDuration), cfg.EpochLength)
	require.Equal(t, genesisRandomness, cfg.Randomness)
	require.Len(t, cfg.Authorities, 1)
}

func TestEpochChange(t *testing.T) {
	f := newFixture(t, nil)
	f.block(t, 1, 100, true)
	f.block(t, 2, 104, true)

	announced := f.block(t, 3, 110, false)
	require.Len(t, announced, 1)
	require.Equal(t, uint64(1), f.babe.EpochIndex(f.ctx.Store))
	require.Equal(t, types.Slot(110), f.babe.CurrentEpochStart(f.ctx.Store))
	require.Equal(t, genesisRandomness, f.babe.Randomness(f.ctx.Store))
	next := announced[0].Randomness
	require.NotEqual(t, genesisRandomness, next)

	// Skipped slots still land in the right epoch, and the announced
	// randomness becomes current.
	f.block(t, 4, 135, false)
	require.Equal(t, uint64(3), f.babe.EpochIndex(f.ctx.Store))
	require.Equal(t, types.Slot(130), f.babe.CurrentEpochStart(f.ctx.Store))
	require.Equal(t, next, f.babe.Randomness(f.ctx.Store))
}

func TestOnTimestampSet(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.babe.OnTimestampSet(f.ctx, 1), "no slot claim yet")

	var d types.Digest
	d.Push(types.DigestItem{Kind: types.DigestPreRuntime, Engine: types.BabeEngineID, Data: types.MustEncode(types.BabePreDigest{Slot: 100})})
	f.sys.InitializeBlock(f.ctx, &types.Header{Number: 1, Digest: d})
	f.babe.OnInitialize(f.ctx, 1)

	require.NoError(t, f.babe.OnTimestampSet(f.ctx, 100*slotDuration+10))
	require.Error(t, f.babe.OnTimestampSet(f.ctx, 101*slotDuration))
}

func TestCheckInherent(t *testing.T) {
	f := newFixture(t, nil)
	set := func(now types.Moment) frame.CallView {
		return frame.CallView{Module: timestamp.ModuleName, Function: "set", Args: types.MustEncode(timestamp.SetArgs{Now: now})}
	}
	var data types.InherentData
	require.NoError(t, f.babe.CheckInherent(f.ctx, set(600_000), &data), "no slot supplied")

	data.PutUint64(types.BabeSlotInherent, 100)
	require.NoError(t, f.babe.CheckInherent(f.ctx, set(100*slotDuration), &data))

	err := f.babe.CheckInherent(f.ctx, set(99*slotDuration), &data)
	var ie types.InherentError
	require.ErrorAs(t, err, &ie)
	require.True(t, ie.Fatal)
	require.Equal(t, types.BabeSlotInherent, ie.Identifier)
}

func TestEquivocationUnsupported(t *testing.T) {
	f := newFixture(t, nil)
	require.False(t, f.babe.EquivocationSupported())

	call := f.rt.MustCall(babe.ModuleName, "report_equivocation", babe.ReportArgs{})
	_, err := f.rt.Dispatch(f.ctx, call, frame.Signed(crypto.Dev("Bob").Account()))
	require.ErrorIs(t, err, babe.ErrEquivocationUnsupported)

	view := frame.CallView{Module: babe.ModuleName, Function: "report_equivocation_unsigned"}
	_, err = f.babe.ValidateUnsigned(f.ctx, types.SourceExternal, view)
	require.Error(t, err)
}

func TestEquivocationReported(t *testing.T) {
	offender := types.AuthorityID{7}
	f := newFixture(t, handler{offender: offender})
	require.True(t, f.babe.EquivocationSupported())
	f.block(t, 1, 100, true)

	args := babe.ReportArgs{Proof: types.EquivocationProof{1, 2}, KeyOwnerProof: types.KeyOwnershipProof{3}}
	view := frame.CallView{Module: babe.ModuleName, Function: "report_equivocation_unsigned", Args: types.MustEncode(args)}
	v, err := f.babe.ValidateUnsigned(f.ctx, types.SourceLocal, view)
	require.NoError(t, err)
	require.Len(t, v.Provides, 1)

	_, err = f.rt.Dispatch(f.ctx, f.rt.MustCall(babe.ModuleName, "report_equivocation_unsigned", args), frame.None())
	require.NoError(t, err)

	var reported []babe.EquivocationReported
	for _, rec := range f.sys.Events(f.ctx.Store) {
		if rec.Event.Module == babeIndex && rec.Event.Variant == babe.EventEquivocationReported {
			var e babe.EquivocationReported
			require.NoError(t, types.Decode(rec.Event.Data, &e))
			reported = append(reported, e)
		}
	}
	require.Equal(t, []babe.EquivocationReported{{Offender: offender}}, reported)
}
