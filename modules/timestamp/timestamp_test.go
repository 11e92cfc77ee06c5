package timestamp_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/modules/system"
	"github.com/blockberries/rtcore/modules/timestamp"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

type observer struct{ seen []types.Moment }

func (o *observer) OnTimestampSet(_ *frame.Context, now types.Moment) error {
	o.seen = append(o.seen, now)
	return nil
}

type fixture struct {
	rt  *frame.Runtime
	ts  *timestamp.Module
	obs *observer
	ctx *frame.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	obs := &observer{}
	sys := system.New(system.DefaultConfig())
	ts := timestamp.New(timestamp.Config{MinimumPeriod: 3000, OnSet: obs})
	rt, err := frame.NewRuntime(frame.Config{Version: types.RuntimeVersion{SpecName: "timestamp-test"}}, sys, ts)
	require.NoError(t, err)
	return &fixture{rt: rt, ts: ts, obs: obs, ctx: rt.NewContext(context.Background(), storage.NewOverlay(storage.Empty()))}
}

func (f *fixture) set(now types.Moment) error {
	_, err := f.rt.Dispatch(f.ctx, f.rt.MustCall(timestamp.ModuleName, "set", timestamp.SetArgs{Now: now}), frame.None())
	return err
}

func (f *fixture) view(now types.Moment) frame.CallView {
	return frame.CallView{Module: timestamp.ModuleName, Function: "set", Args: types.MustEncode(timestamp.SetArgs{Now: now})}
}

func TestSetOncePerBlock(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.set(6000))
	require.Equal(t, types.Moment(6000), f.ts.Now(f.ctx.Store))
	require.ErrorIs(t, f.set(12000), timestamp.ErrAlreadySet)
	require.NoError(t, f.ts.OnFinalize(f.ctx, 1))

	// Next block: too early, then on time.
	require.ErrorIs(t, f.set(8999), timestamp.ErrTooEarly)
	require.NoError(t, f.set(9000))
	require.NoError(t, f.ts.OnFinalize(f.ctx, 2))
	require.Equal(t, []types.Moment{6000, 9000}, f.obs.seen)

	require.ErrorIs(t, f.ts.OnFinalize(f.ctx, 3), timestamp.ErrNotSet)
}

func TestSetRequiresNoneOrigin(t *testing.T) {
	f := newFixture(t)
	call := f.rt.MustCall(timestamp.ModuleName, "set", timestamp.SetArgs{Now: 1})
	_, err := f.rt.Dispatch(f.ctx, call, frame.Root())
	require.ErrorIs(t, err, frame.ErrBadOrigin)
}

func TestCreateInherent(t *testing.T) {
	f := newFixture(t)
	var data types.InherentData
	_, _, ok := f.ts.CreateInherent(&data)
	require.False(t, ok)

	data.PutUint64(types.TimestampInherent, 42_000)
	fn, args, ok := f.ts.CreateInherent(&data)
	require.True(t, ok)
	require.Equal(t, "set", fn)
	require.Equal(t, timestamp.SetArgs{Now: 42_000}, args)
	require.True(t, f.ts.IsInherent("set"))
}

func TestCheckInherent(t *testing.T) {
	f := newFixture(t)
	var data types.InherentData
	data.PutUint64(types.TimestampInherent, 100_000)

	require.NoError(t, f.ts.CheckInherent(f.ctx, f.view(100_000+timestamp.MaxTimestampDriftMillis), &data))

	err := f.ts.CheckInherent(f.ctx, f.view(100_001+timestamp.MaxTimestampDriftMillis), &data)
	var ie types.InherentError
	require.ErrorAs(t, err, &ie)
	require.False(t, ie.Fatal, "a block from the future may become valid later")

	require.NoError(t, f.set(99_000))
	err = f.ts.CheckInherent(f.ctx, f.view(100_000), &data)
	require.ErrorAs(t, err, &ie)
	require.True(t, ie.Fatal)

	// Other calls are not this module's concern.
	require.NoError(t, f.ts.CheckInherent(f.ctx, frame.CallView{Module: "System", Function: "remark"}, &data))
}

func TestCheckInherentNearMaxTime(t *testing.T) {
	f := newFixture(t)
	var data types.InherentData
	data.PutUint64(types.TimestampInherent, math.MaxUint64-1_000)

	require.NoError(t, f.ts.CheckInherent(f.ctx, f.view(math.MaxUint64), &data))
	require.NoError(t, f.ts.CheckInherent(f.ctx, f.view(math.MaxUint64-1_000), &data))

	data.PutUint64(types.TimestampInherent, math.MaxUint64)
	require.NoError(t, f.ts.CheckInherent(f.ctx, f.view(math.MaxUint64), &data))
}

func TestDecodeSet(t *testing.T) {
	f := newFixture(t)
	now, ok := timestamp.DecodeSet(f.view(7))
	require.True(t, ok)
	require.Equal(t, types.Moment(7), now)

	_, ok = timestamp.DecodeSet(frame.CallView{Module: timestamp.ModuleName, Function: "other"})
	require.False(t, ok)
}
