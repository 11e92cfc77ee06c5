package balances_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/rtcore/crypto"
	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/modules/balances"
	"github.com/blockberries/rtcore/modules/system"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

const ed = 500

var (
	alice   = crypto.Dev("Alice").Account()
	bob     = crypto.Dev("Bob").Account()
	charlie = crypto.Dev("Charlie").Account()
)

type fixture struct {
	rt  *frame.Runtime
	sys *system.Module
	bal *balances.Module
	ctx *frame.Context
}

func newFixture(t *testing.T, genesis ...balances.GenesisAccount) *fixture {
	t.Helper()
	sys := system.New(system.DefaultConfig())
	bal := balances.New(balances.Config{ExistentialDeposit: ed, Accounts: sys, Genesis: genesis})
	rt, err := frame.NewRuntime(frame.Config{
		Version:    types.RuntimeVersion{SpecName: "balances-test", SpecVersion: 1},
		Extensions: sys.Extensions(),
	}, sys, bal)
	require.NoError(t, err)

	ctx := rt.NewContext(context.Background(), storage.NewOverlay(storage.Empty()))
	require.NoError(t, rt.BuildGenesis(ctx))
	sys.InitializeBlock(ctx, &types.Header{Number: 1})
	sys.NoteFinishedInitialize(ctx)
	return &fixture{rt: rt, sys: sys, bal: bal, ctx: ctx}
}

func (f *fixture) dispatch(origin frame.Origin, function string, args any) error {
	_, err := f.rt.Dispatch(f.ctx, f.rt.MustCall(balances.ModuleName, function, args), origin)
	return err
}

func (f *fixture) free(who types.AccountID) types.Balance { return f.bal.FreeBalance(f.ctx.Store, who) }

func TestGenesis(t *testing.T) {
	f := newFixture(t,
		balances.GenesisAccount{Who: alice, Free: 1_000},
		balances.GenesisAccount{Who: bob, Free: 2_000},
	)
	require.Equal(t, types.Balance(1_000), f.free(alice))
	require.Equal(t, types.Balance(2_000), f.free(bob))
	require.Equal(t, types.Balance(3_000), f.bal.TotalIssuance(f.ctx.Store))
}

func TestGenesisBelowExistentialDeposit(t *testing.T) {
	sys := system.New(system.DefaultConfig())
	bal := balances.New(balances.Config{
		ExistentialDeposit: ed,
		Accounts:           sys,
		Genesis:            []balances.GenesisAccount{{Who: alice, Free: ed - 1}},
	})
	rt, err := frame.NewRuntime(frame.Config{Version: types.RuntimeVersion{SpecName: "t"}}, sys, bal)
	require.NoError(t, err)
	ctx := rt.NewContext(context.Background(), storage.NewOverlay(storage.Empty()))
	require.Error(t, rt.BuildGenesis(ctx))
}

func TestTransfer(t *testing.T) {
	f := newFixture(t, balances.GenesisAccount{Who: alice, Free: 10_000})

	require.NoError(t, f.dispatch(frame.Signed(alice), "transfer", balances.TransferArgs{Dest: bob, Value: 3_000}))
	require.Equal(t, types.Balance(7_000), f.free(alice))
	require.Equal(t, types.Balance(3_000), f.free(bob))
	require.True(t, f.sys.AccountExists(f.ctx.Store, bob))
	require.Equal(t, types.Balance(10_000), f.bal.TotalIssuance(f.ctx.Store))
}

func TestTransferErrors(t *testing.T) {
	f := newFixture(t, balances.GenesisAccount{Who: alice, Free: 1_000})

	err := f.dispatch(frame.Signed(alice), "transfer", balances.TransferArgs{Dest: bob, Value: 2_000})
	require.ErrorIs(t, err, balances.ErrInsufficientBalance)

	err = f.dispatch(frame.Signed(alice), "transfer", balances.TransferArgs{Dest: bob, Value: ed - 1})
	require.ErrorIs(t, err, balances.ErrExistentialDeposit)
	// The failed call left no trace.
	require.Equal(t, types.Balance(1_000), f.free(alice))

	err = f.dispatch(frame.Signed(alice), "transfer_keep_alive", balances.TransferArgs{Dest: bob, Value: 600})
	require.ErrorIs(t, err, balances.ErrKeepAlive)

	err = f.dispatch(frame.None(), "transfer", balances.TransferArgs{Dest: bob, Value: 600})
	require.ErrorIs(t, err, frame.ErrBadOrigin)
}

func TestTransferReapsDust(t *testing.T) {
	f := newFixture(t,
		balances.GenesisAccount{Who: alice, Free: 1_000},
		balances.GenesisAccount{Who: bob, Free: 1_000},
	)

	// Alice keeps 100, below the deposit: she is reaped and the 100 is lost.
	require.NoError(t, f.dispatch(frame.Signed(alice), "transfer", balances.TransferArgs{Dest: bob, Value: 900}))
	require.False(t, f.sys.AccountExists(f.ctx.Store, alice))
	require.Equal(t, types.Balance(1_900), f.free(bob))
	require.Equal(t, types.Balance(1_900), f.bal.TotalIssuance(f.ctx.Store))

	var dust []balances.DustLost
	for _, rec := range f.sys.Events(f.ctx.Store) {
		if rec.Event.Module == 1 && rec.Event.Variant == balances.EventDustLost {
			var d balances.DustLost
			require.NoError(t, types.Decode(rec.Event.Data, &d))
			dust = append(dust, d)
		}
	}
	require.Equal(t, []balances.DustLost{{Account: alice, Amount: 100}}, dust)
}

func TestSetBalanceAndForceTransfer(t *testing.T) {
	f := newFixture(t, balances.GenesisAccount{Who: alice, Free: 1_000})

	err := f.dispatch(frame.Signed(alice), "set_balance", balances.SetBalanceArgs{Who: charlie, NewFree: 5_000})
	require.ErrorIs(t, err, frame.ErrBadOrigin)

	require.NoError(t, f.dispatch(frame.Root(), "set_balance", balances.SetBalanceArgs{Who: charlie, NewFree: 5_000, NewReserved: ed - 1}))
	require.Equal(t, types.Balance(5_000), f.free(charlie))
	require.Zero(t, f.sys.AccountData(f.ctx.Store, charlie).Reserved, "reserve below the deposit is dropped")
	require.Equal(t, types.Balance(6_000), f.bal.TotalIssuance(f.ctx.Store))

	require.NoError(t, f.dispatch(frame.Root(), "force_transfer", balances.ForceTransferArgs{Source: charlie, Dest: alice, Value: 2_000}))
	require.Equal(t, types.Balance(3_000), f.free(alice))
	require.Equal(t, types.Balance(3_000), f.free(charlie))
}
