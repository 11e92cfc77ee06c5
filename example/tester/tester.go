// Package tester is the host-tester runtime: System, collective flip
// randomness, BABE, GRANDPA, Timestamp, Balances and Sudo composed
// into one runtime with session keys and consensus parameter queries.
package tester

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/executive"
	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/keystore"
	"github.com/blockberries/rtcore/modules/babe"
	"github.com/blockberries/rtcore/modules/balances"
	"github.com/blockberries/rtcore/modules/grandpa"
	"github.com/blockberries/rtcore/modules/randomness"
	"github.com/blockberries/rtcore/modules/sudo"
	"github.com/blockberries/rtcore/modules/system"
	"github.com/blockberries/rtcore/modules/timestamp"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// Compile-time interface checks.
var (
	_ rtcore.Runtime             = (*Runtime)(nil)
	_ rtcore.SessionKeys         = (*Runtime)(nil)
	_ rtcore.BabeAPI             = (*Runtime)(nil)
	_ rtcore.GrandpaAPI          = (*Runtime)(nil)
	_ rtcore.BabeEquivocation    = (*Runtime)(nil)
	_ rtcore.GrandpaEquivocation = (*Runtime)(nil)
)

// Params are the chain constants.
type Params struct {
	Version types.RuntimeVersion
	System  system.Config
	// SlotDuration is in milliseconds.
	SlotDuration uint64
	// EpochDuration is in slots.
	EpochDuration      uint64
	MinimumPeriod      types.Moment
	ExistentialDeposit types.Balance
}

// Version returns the runtime version with every API the tester
// serves.
func Version() types.RuntimeVersion {
	api := func(name string, v uint32) types.ApiVersion {
		return types.ApiVersion{ID: types.ApiIDOf(name), Version: v}
	}
	return types.RuntimeVersion{
		SpecName:         "polkadot",
		ImplName:         "host-tester",
		AuthoringVersion: 2,
		SpecVersion:      1,
		ImplVersion:      1,
		Apis: []types.ApiVersion{
			api(rtcore.APICore, 3),
			api(rtcore.APIMetadata, 1),
			api(rtcore.APIBlockBuilder, 4),
			api(rtcore.APITaggedTransactionQueue, 2),
			api(rtcore.APISessionKeys, 1),
			api(rtcore.APIBabe, 2),
			api(rtcore.APIGrandpa, 2),
		},
		TransactionVersion: 1,
	}
}

// DefaultParams returns the host-tester constants.
func DefaultParams() Params {
	sys := system.DefaultConfig()
	sys.BlockHashCount = 2400
	return Params{
		Version:            Version(),
		System:             sys,
		SlotDuration:       6000,
		EpochDuration:      2400,
		MinimumPeriod:      3000,
		ExistentialDeposit: 500,
	}
}

// Options are the runtime's collaborators. The zero value is usable.
type Options struct {
	Logger *zap.Logger
	// Keys backs the session key API. Defaults to an empty
	// keystore.Memory.
	Keys rtcore.KeyStore
	// Hasher computes state roots. Defaults to storage.FlatRoot.
	Hasher storage.RootHasher
	// BabeEquivocation and GrandpaEquivocation handle equivocation
	// reports. Nil leaves reporting unsupported.
	BabeEquivocation    babe.EquivocationHandler
	GrandpaEquivocation grandpa.EquivocationHandler
}

// Runtime is the composed tester runtime.
type Runtime struct {
	*executive.API

	System     *system.Module
	Randomness *randomness.Module
	Babe       *babe.Module
	Grandpa    *grandpa.Module
	Timestamp  *timestamp.Module
	Balances   *balances.Module
	Sudo       *sudo.Module

	keys rtcore.KeyStore
}

// New composes the runtime for the given constants and chain spec.
func New(p Params, g Genesis, opts Options) (*Runtime, error) {
	spec, err := g.resolve()
	if err != nil {
		return nil, err
	}
	if opts.Keys == nil {
		opts.Keys = keystore.NewMemory()
	}

	sys := system.New(p.System)
	rnd := randomness.New(randomness.Config{Chain: sys})

	babeCfg := babe.DefaultConfig()
	babeCfg.SlotDuration = p.SlotDuration
	babeCfg.EpochDuration = p.EpochDuration
	babeCfg.Authorities = spec.babe
	babeCfg.Chain = sys
	babeCfg.Digest = sys
	babeCfg.TimestampOf = timestamp.DecodeSet
	babeCfg.Equivocation = opts.BabeEquivocation
	bb := babe.New(babeCfg)

	gp := grandpa.New(grandpa.Config{
		Authorities:  spec.grandpa,
		Chain:        sys,
		Digest:       sys,
		Equivocation: opts.GrandpaEquivocation,
	})
	ts := timestamp.New(timestamp.Config{MinimumPeriod: p.MinimumPeriod, OnSet: bb})
	bal := balances.New(balances.Config{
		ExistentialDeposit: p.ExistentialDeposit,
		Accounts:           sys,
		Genesis:            spec.balances,
	})
	su := sudo.New(sudo.Config{Key: spec.sudo})

	rt, err := frame.NewRuntime(frame.Config{
		Version:    p.Version,
		Extensions: sys.Extensions(),
		Hasher:     opts.Hasher,
		Logger:     opts.Logger,
	}, sys, rnd, bb, gp, ts, bal, su)
	if err != nil {
		return nil, fmt.Errorf("tester: %w", err)
	}
	return &Runtime{
		API:        executive.NewAPI(rt, executive.Options{Randomness: rnd}),
		System:     sys,
		Randomness: rnd,
		Babe:       bb,
		Grandpa:    gp,
		Timestamp:  ts,
		Balances:   bal,
		Sudo:       su,
		keys:       opts.Keys,
	}, nil
}

// Dev returns the runtime with default constants over DevGenesis.
func Dev(opts Options) (*Runtime, error) {
	return New(DefaultParams(), DevGenesis(), opts)
}

// SessionKeys are the public session keys of one authority.
type SessionKeys struct {
	Babe    [32]byte `cramberry:"1"`
	Grandpa [32]byte `cramberry:"2"`
}

func (r *Runtime) GenerateSessionKeys(_ context.Context, seed []byte) ([]byte, error) {
	if seed == nil {
		phrase, err := keystore.NewMnemonic()
		if err != nil {
			return nil, err
		}
		seed = []byte(phrase)
	}
	var keys SessionKeys
	for _, k := range []struct {
		typ types.KeyTypeID
		out *[32]byte
	}{
		{types.KeyTypeBabe, &keys.Babe},
		{types.KeyTypeGrandpa, &keys.Grandpa},
	} {
		pub, err := r.keys.Generate(k.typ, seed)
		if err != nil {
			return nil, fmt.Errorf("tester: generate %s key: %w", k.typ, err)
		}
		copy(k.out[:], pub)
	}
	return types.Encode(keys)
}

func (r *Runtime) DecodeSessionKeys(_ context.Context, encoded []byte) ([]types.SessionKey, error) {
	var keys SessionKeys
	if err := types.Decode(encoded, &keys); err != nil {
		return nil, fmt.Errorf("tester: decode session keys: %w", err)
	}
	return []types.SessionKey{
		{PublicKey: keys.Babe[:], KeyType: types.KeyTypeBabe},
		{PublicKey: keys.Grandpa[:], KeyType: types.KeyTypeGrandpa},
	}, nil
}

func (r *Runtime) BabeConfiguration(_ context.Context, at storage.Snapshot) (types.EpochConfiguration, error) {
	return r.Babe.Configuration(at), nil
}

func (r *Runtime) CurrentEpochStart(_ context.Context, at storage.Snapshot) (types.Slot, error) {
	return r.Babe.CurrentEpochStart(at), nil
}

func (r *Runtime) GrandpaAuthorities(_ context.Context, at storage.Snapshot) (types.AuthoritySet, error) {
	return r.Grandpa.Authorities(at), nil
}

// GenerateBabeKeyOwnershipProof is unsupported: the tester keeps no
// historical session data to prove against.
func (r *Runtime) GenerateBabeKeyOwnershipProof(context.Context, storage.Snapshot, types.Slot, types.AuthorityID) (types.KeyOwnershipProof, error) {
	return nil, rtcore.ErrUnsupported
}

func (r *Runtime) SubmitBabeEquivocationReport(_ context.Context, _ storage.Snapshot, proof types.EquivocationProof, owner types.KeyOwnershipProof) (types.Extrinsic, error) {
	if !r.Babe.EquivocationSupported() {
		return types.Extrinsic{}, rtcore.ErrUnsupported
	}
	return r.report(babe.ModuleName, babe.ReportArgs{Proof: proof, KeyOwnerProof: owner})
}

// GenerateGrandpaKeyOwnershipProof is unsupported for the same reason
// as GenerateBabeKeyOwnershipProof.
func (r *Runtime) GenerateGrandpaKeyOwnershipProof(context.Context, storage.Snapshot, uint64, types.AuthorityID) (types.KeyOwnershipProof, error) {
	return nil, rtcore.ErrUnsupported
}

func (r *Runtime) SubmitGrandpaEquivocationReport(_ context.Context, _ storage.Snapshot, proof types.EquivocationProof, owner types.KeyOwnershipProof) (types.Extrinsic, error) {
	if !r.Grandpa.EquivocationSupported() {
		return types.Extrinsic{}, rtcore.ErrUnsupported
	}
	return r.report(grandpa.ModuleName, grandpa.ReportArgs{Proof: proof, KeyOwnerProof: owner})
}

func (r *Runtime) report(module string, args any) (types.Extrinsic, error) {
	call, err := r.Frame().NewCall(module, "report_equivocation_unsigned", args)
	if err != nil {
		return types.Extrinsic{}, err
	}
	return types.NewUnsigned(call), nil
}
