// Package babe tracks slots and epochs for BABE block production. It
// reads the author's slot claim from the header, rotates epoch
// randomness and announces the next epoch in the digest. Slot claim
// verification is done by the consensus engine, not here.
package babe

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/hashing"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

const ModuleName = "Babe"

// Event variants.
const (
	EventEquivocationReported uint8 = iota
)

type EquivocationReported struct {
	Offender types.AuthorityID `cramberry:"1"`
}

var (
	epochIndex        = storage.NewValue[uint64](ModuleName, "EpochIndex")
	authorities       = storage.NewValue[[]types.Authority](ModuleName, "Authorities")
	genesisSlot       = storage.NewValue[types.Slot](ModuleName, "GenesisSlot")
	currentSlot       = storage.NewValue[types.Slot](ModuleName, "CurrentSlot")
	randomness        = storage.NewValue[types.Hash](ModuleName, "Randomness")
	nextRandomness    = storage.NewValue[types.Hash](ModuleName, "NextRandomness")
	underConstruction = storage.NewValue[[]types.Hash](ModuleName, "UnderConstruction")
	initialized       = storage.NewValue[types.BabePreDigest](ModuleName, "Initialized")
)

var (
	ErrInvalidEquivocationProof = frame.NewError(ModuleName, 0, "InvalidEquivocationProof")
	ErrInvalidKeyOwnershipProof = frame.NewError(ModuleName, 1, "InvalidKeyOwnershipProof")
	ErrEquivocationUnsupported  = frame.NewError(ModuleName, 2, "EquivocationUnsupported")
)

// EquivocationHandler verifies and punishes equivocation reports.
type EquivocationHandler interface {
	HandleEquivocation(ctx *frame.Context, proof types.EquivocationProof, owner types.KeyOwnershipProof) (types.AuthorityID, error)
}

// Config configures the module.
type Config struct {
	// SlotDuration is in milliseconds.
	SlotDuration uint64
	// EpochDuration is in slots.
	EpochDuration uint64
	// C is the primary slot probability C[0]/C[1].
	C            [2]uint64
	AllowedSlots types.AllowedSlots
	// Authorities is the genesis authority set.
	Authorities []types.Authority
	// Randomness is the genesis epoch randomness.
	Randomness types.Hash

	Chain  frame.ChainInfo
	Digest frame.DigestSink
	// TimestampOf extracts the block time from a timestamp set call.
	TimestampOf func(frame.CallView) (types.Moment, bool)
	// Equivocation handles reports. Nil means reports are unsupported.
	Equivocation EquivocationHandler
}

// DefaultConfig has 6 second slots, 2400-slot epochs and c = 1/4.
func DefaultConfig() Config {
	return Config{
		SlotDuration:  6000,
		EpochDuration: 2400,
		C:             [2]uint64{1, 4},
		AllowedSlots:  types.PrimaryAndSecondaryPlainSlots,
	}
}

type ReportArgs struct {
	Proof         types.EquivocationProof `cramberry:"1"`
	KeyOwnerProof types.KeyOwnershipProof `cramberry:"2"`
}

type Module struct {
	frame.Base
	cfg Config
}

var (
	_ frame.InherentProvider  = (*Module)(nil)
	_ frame.GenesisBuilder    = (*Module)(nil)
	_ frame.UnsignedValidator = (*Module)(nil)
)

func New(cfg Config) *Module {
	m := &Module{cfg: cfg}
	reportWeight := frame.Weigh[ReportArgs](50_000_000, types.Operational)
	m.Base = frame.NewBase(ModuleName, frame.Spec{
		Calls: []frame.CallSpec{
			frame.NewCall("report_equivocation", frame.SignedOrigin, reportWeight, m.reportEquivocation),
			frame.NewCall("report_equivocation_unsigned", frame.NoneOrigin, reportWeight, m.reportEquivocation),
		},
		Events: []frame.EventSpec{
			frame.NewEvent[EquivocationReported]("EquivocationReported"),
		},
		Errors: []*frame.ModuleError{ErrInvalidEquivocationProof, ErrInvalidKeyOwnershipProof, ErrEquivocationUnsupported},
		Constants: []frame.Constant{
			frame.NewConstant("EpochDuration", cfg.EpochDuration),
			frame.NewConstant("ExpectedBlockTime", cfg.SlotDuration),
		},
		Storage: []frame.Item{
			epochIndex, authorities, genesisSlot, currentSlot,
			randomness, nextRandomness, underConstruction, initialized,
		},
	})
	return m
}

func (m *Module) BuildGenesis(ctx *frame.Context) error {
	if len(m.cfg.Authorities) == 0 {
		return errors.New("no genesis authorities")
	}
	authorities.Put(ctx.Store, m.cfg.Authorities)
	randomness.Put(ctx.Store, m.cfg.Randomness)
	nextRandomness.Put(ctx.Store, m.cfg.Randomness)
	return nil
}

// OnInitialize reads the slot claim, fixes the genesis slot on the
// first block and enacts an epoch change when the slot crosses into a
// new epoch.
func (m *Module) OnInitialize(ctx *frame.Context, n types.BlockNumber) types.Weight {
	bz, ok := m.cfg.Digest.Digest(ctx.Store).PreRuntime(types.BabeEngineID)
	if !ok {
		return 0
	}
	var pre types.BabePreDigest
	if err := types.Decode(bz, &pre); err != nil {
		ctx.Logger().Warn("undecodable babe pre-digest", zap.Uint32("block", uint32(n)), zap.Error(err))
		return 0
	}
	s := ctx.Store
	if genesisSlot.Load(s) == 0 {
		genesisSlot.Put(s, pre.Slot)
		m.depositNextEpoch(ctx, authorities.Load(s), nextRandomness.Load(s))
	}
	currentSlot.Put(s, pre.Slot)
	initialized.Put(s, pre)

	if m.shouldEpochChange(s, pre.Slot) {
		m.enactEpochChange(ctx, pre.Slot)
	}
	return 0
}

func (m *Module) OnFinalize(ctx *frame.Context, _ types.BlockNumber) error {
	pre, ok := initialized.Take(ctx.Store)
	if ok && pre.Primary {
		underConstruction.Mutate(ctx.Store, func(outs *[]types.Hash) {
			*outs = append(*outs, pre.VRFOutput)
		})
	}
	return nil
}

func (m *Module) epochStart(r storage.Reader) types.Slot {
	return types.Slot(epochIndex.Load(r)*m.cfg.EpochDuration) + genesisSlot.Load(r)
}

func (m *Module) shouldEpochChange(r storage.Reader, now types.Slot) bool {
	start := m.epochStart(r)
	return now >= start && uint64(now-start) >= m.cfg.EpochDuration
}

// enactEpochChange moves to the epoch containing slot. Authorities
// stay the same; the pending randomness becomes current and the VRF
// outputs of the ended epoch seed the next one.
func (m *Module) enactEpochChange(ctx *frame.Context, slot types.Slot) {
	s := ctx.Store
	idx := uint64(slot-genesisSlot.Load(s)) / m.cfg.EpochDuration
	epochIndex.Put(s, idx)

	current := nextRandomness.Load(s)
	randomness.Put(s, current)
	outs, _ := underConstruction.Take(s)
	next := computeRandomness(current, idx+1, outs)
	nextRandomness.Put(s, next)

	auths := authorities.Load(s)
	m.depositNextEpoch(ctx, auths, next)
	ctx.Logger().Debug("babe epoch change", zap.Uint64("epoch", idx), zap.Uint64("slot", uint64(slot)))
}

func computeRandomness(last types.Hash, epoch uint64, outs []types.Hash) types.Hash {
	parts := [][]byte{last[:], binary.LittleEndian.AppendUint64(nil, epoch)}
	for _, o := range outs {
		parts = append(parts, o[:])
	}
	return hashing.Blake2b256(parts...)
}

func (m *Module) depositNextEpoch(ctx *frame.Context, auths []types.Authority, r types.Hash) {
	log := types.ConsensusLog{
		Kind:      types.LogNextEpochData,
		NextEpoch: &types.NextEpochDescriptor{Authorities: auths, Randomness: r},
	}
	m.cfg.Digest.DepositLog(ctx, types.DigestItem{
		Kind:   types.DigestConsensus,
		Engine: types.BabeEngineID,
		Data:   types.MustEncode(log),
	})
}

// OnTimestampSet checks that the block time falls in the claimed slot.
func (m *Module) OnTimestampSet(ctx *frame.Context, now types.Moment) error {
	if !initialized.Exists(ctx.Store) {
		return nil
	}
	slot := types.Slot(uint64(now) / m.cfg.SlotDuration)
	if cur := currentSlot.Load(ctx.Store); slot != cur {
		return fmt.Errorf("babe: timestamp slot %d does not match current slot %d", slot, cur)
	}
	return nil
}

// Configuration returns the BABE parameters as of r.
func (m *Module) Configuration(r storage.Reader) types.EpochConfiguration {
	return types.EpochConfiguration{
		SlotDuration: m.cfg.SlotDuration,
		EpochLength:  m.cfg.EpochDuration,
		C1:           m.cfg.C[0],
		C2:           m.cfg.C[1],
		Authorities:  authorities.Load(r),
		Randomness:   randomness.Load(r),
		AllowedSlots: m.cfg.AllowedSlots,
	}
}

// CurrentEpochStart returns the first slot of the current epoch.
func (m *Module) CurrentEpochStart(r storage.Reader) types.Slot { return m.epochStart(r) }

// CurrentSlot returns the slot of the latest block.
func (m *Module) CurrentSlot(r storage.Reader) types.Slot { return currentSlot.Load(r) }

// EpochIndex returns the index of the current epoch.
func (m *Module) EpochIndex(r storage.Reader) uint64 { return epochIndex.Load(r) }

// Randomness returns the randomness of the current epoch.
func (m *Module) Randomness(r storage.Reader) types.Hash { return randomness.Load(r) }

// EquivocationSupported reports whether an equivocation handler is
// configured.
func (m *Module) EquivocationSupported() bool { return m.cfg.Equivocation != nil }

func (m *Module) reportEquivocation(ctx *frame.Context, _ frame.Origin, a ReportArgs) (types.PostDispatchInfo, error) {
	if m.cfg.Equivocation == nil {
		return frame.Fail(ErrEquivocationUnsupported)
	}
	offender, err := m.cfg.Equivocation.HandleEquivocation(ctx, a.Proof, a.KeyOwnerProof)
	if err != nil {
		return frame.Fail(err)
	}
	ctx.DepositEvent(ModuleName, EventEquivocationReported, EquivocationReported{Offender: offender})
	return frame.Ok()
}

// ValidateUnsigned admits unsigned equivocation reports only when a
// handler is configured.
func (m *Module) ValidateUnsigned(ctx *frame.Context, _ types.TransactionSource, call frame.CallView) (types.ValidTransaction, error) {
	if call.Function != "report_equivocation_unsigned" || m.cfg.Equivocation == nil {
		return types.ValidTransaction{}, types.Invalid(types.InvalidCall)
	}
	v := types.DefaultValidTransaction()
	v.Priority = ^uint64(0)
	tag := hashing.Blake2b256(call.Args)
	v.Provides = [][]byte{tag[:]}
	v.Longevity = 64
	return v, nil
}

func (m *Module) InherentIdentifier() types.InherentIdentifier { return types.BabeSlotInherent }

func (m *Module) CreateInherent(*types.InherentData) (string, any, bool) { return "", nil, false }

func (m *Module) IsInherent(string) bool { return false }

// CheckInherent requires the block time to fall in the supplied slot.
func (m *Module) CheckInherent(_ *frame.Context, call frame.CallView, data *types.InherentData) error {
	if m.cfg.TimestampOf == nil {
		return nil
	}
	t, ok := m.cfg.TimestampOf(call)
	if !ok {
		return nil
	}
	slot, err := data.Uint64(types.BabeSlotInherent)
	if err != nil {
		return nil
	}
	if got := uint64(t) / m.cfg.SlotDuration; got != slot {
		return types.InherentError{
			Identifier: types.BabeSlotInherent,
			Fatal:      true,
			Message:    fmt.Sprintf("timestamp slot %d does not match supplied slot %d", got, slot),
		}
	}
	return nil
}
