// Package grandpa keeps the GRANDPA finality authority set and signals
// set changes to the finality gadget through the header digest.
package grandpa

import (
	"errors"
	"math"

	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/hashing"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

const ModuleName = "Grandpa"

// AuthoritiesKey is the well-known key of the authority list.
const AuthoritiesKey = ":grandpa_authorities"

// AuthoritiesVersion is the layout version stored with the list.
const AuthoritiesVersion uint8 = 1

// Event variants.
const (
	EventNewAuthorities uint8 = iota
	EventEquivocationReported
)

type NewAuthorities struct {
	Authorities []types.Authority `cramberry:"1"`
}

type EquivocationReported struct {
	Offender types.AuthorityID `cramberry:"1"`
}

// VersionedAuthorityList is the value stored at AuthoritiesKey.
type VersionedAuthorityList struct {
	Version     uint8             `cramberry:"1"`
	Authorities []types.Authority `cramberry:"2"`
}

// PendingChange is a scheduled authority set change.
type PendingChange struct {
	ScheduledAt     types.BlockNumber  `cramberry:"1"`
	Delay           types.BlockNumber  `cramberry:"2"`
	NextAuthorities []types.Authority  `cramberry:"3"`
	Forced          *types.BlockNumber `cramberry:"4"`
}

// Stall is a request to force a change after finality stalled.
type Stall struct {
	Delay             types.BlockNumber `cramberry:"1"`
	BestFinalizedFrom types.BlockNumber `cramberry:"2"`
}

var (
	authorityList = storage.NewWellKnown[VersionedAuthorityList](ModuleName, "Authorities", []byte(AuthoritiesKey))
	currentSetID  = storage.NewValue[uint64](ModuleName, "CurrentSetId")
	pendingChange = storage.NewValue[PendingChange](ModuleName, "PendingChange")
	stalled       = storage.NewValue[Stall](ModuleName, "Stalled")
)

var (
	ErrChangePending            = frame.NewError(ModuleName, 0, "ChangePending")
	ErrInvalidEquivocationProof = frame.NewError(ModuleName, 1, "InvalidEquivocationProof")
	ErrEquivocationUnsupported  = frame.NewError(ModuleName, 2, "EquivocationUnsupported")
	ErrTooLargeDelay            = frame.NewError(ModuleName, 3, "TooLargeDelay")
)

// EquivocationHandler verifies and punishes equivocation reports.
type EquivocationHandler interface {
	HandleEquivocation(ctx *frame.Context, proof types.EquivocationProof, owner types.KeyOwnershipProof) (types.AuthorityID, error)
}

type Config struct {
	// Authorities is the genesis authority set.
	Authorities []types.Authority
	Chain       frame.ChainInfo
	Digest      frame.DigestSink
	// Equivocation handles reports. Nil means reports are unsupported.
	Equivocation EquivocationHandler
}

type ScheduleChangeArgs struct {
	NextAuthorities []types.Authority `cramberry:"1"`
	Delay           types.BlockNumber `cramberry:"2"`
}

type NoteStalledArgs struct {
	Delay                    types.BlockNumber `cramberry:"1"`
	BestFinalizedBlockNumber types.BlockNumber `cramberry:"2"`
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
			frame.NewCall("schedule_change", frame.RootOrigin,
				frame.Weigh[ScheduleChangeArgs](10_000_000, types.Operational), m.scheduleChangeCall),
			frame.NewCall("note_stalled", frame.RootOrigin,
				frame.Weigh[NoteStalledArgs](10_000_000, types.Operational), m.noteStalled),
		},
		Events: []frame.EventSpec{
			frame.NewEvent[NewAuthorities]("NewAuthorities"),
			frame.NewEvent[EquivocationReported]("EquivocationReported"),
		},
		Errors:  []*frame.ModuleError{ErrChangePending, ErrInvalidEquivocationProof, ErrEquivocationUnsupported, ErrTooLargeDelay},
		Storage: []frame.Item{authorityList, currentSetID, pendingChange, stalled},
	})
	return m
}

func (m *Module) BuildGenesis(ctx *frame.Context) error {
	if len(m.cfg.Authorities) == 0 {
		return errors.New("no genesis authorities")
	}
	authorityList.Put(ctx.Store, VersionedAuthorityList{Version: AuthoritiesVersion, Authorities: m.cfg.Authorities})
	currentSetID.Put(ctx.Store, 0)
	return nil
}

// Authorities returns the current set and its id.
func (m *Module) Authorities(r storage.Reader) types.AuthoritySet {
	return types.AuthoritySet{
		Authorities: authorityList.Load(r).Authorities,
		SetID:       currentSetID.Load(r),
	}
}

// PendingChange returns the scheduled change, if any.
func (m *Module) PendingChange(r storage.Reader) (PendingChange, bool) { return pendingChange.Get(r) }

// ScheduleChange schedules a switch to next after delay blocks. A
// forced change carries the median last finalized block. The
// enactment block must fit a block number.
func (m *Module) ScheduleChange(ctx *frame.Context, next []types.Authority, delay types.BlockNumber, forced *types.BlockNumber) error {
	if pendingChange.Exists(ctx.Store) {
		return ErrChangePending
	}
	now := m.cfg.Chain.BlockNumber(ctx.Store)
	if uint64(now)+uint64(delay) > math.MaxUint32 {
		return ErrTooLargeDelay
	}
	pendingChange.Put(ctx.Store, PendingChange{
		ScheduledAt:     now,
		Delay:           delay,
		NextAuthorities: next,
		Forced:          forced,
	})
	return nil
}

func (m *Module) scheduleChangeCall(ctx *frame.Context, _ frame.Origin, a ScheduleChangeArgs) (types.PostDispatchInfo, error) {
	if err := m.ScheduleChange(ctx, a.NextAuthorities, a.Delay, nil); err != nil {
		return frame.Fail(err)
	}
	return frame.Ok()
}

func (m *Module) noteStalled(ctx *frame.Context, _ frame.Origin, a NoteStalledArgs) (types.PostDispatchInfo, error) {
	if uint64(m.cfg.Chain.BlockNumber(ctx.Store))+uint64(a.Delay) > math.MaxUint32 {
		return frame.Fail(ErrTooLargeDelay)
	}
	stalled.Put(ctx.Store, Stall{Delay: a.Delay, BestFinalizedFrom: a.BestFinalizedBlockNumber})
	return frame.Ok()
}

// OnFinalize turns a stall into a forced change, announces a change
// in the block it was scheduled in and enacts it delay blocks later.
func (m *Module) OnFinalize(ctx *frame.Context, n types.BlockNumber) error {
	s := ctx.Store
	if st, ok := stalled.Take(s); ok {
		median := st.BestFinalizedFrom
		current := authorityList.Load(s).Authorities
		if err := m.ScheduleChange(ctx, current, st.Delay, &median); err != nil && !errors.Is(err, ErrChangePending) && !errors.Is(err, ErrTooLargeDelay) {
			return err
		}
	}

	pc, ok := pendingChange.Get(s)
	if !ok {
		return nil
	}
	if n == pc.ScheduledAt {
		change := &types.ScheduledChange{NextAuthorities: pc.NextAuthorities, Delay: pc.Delay}
		log := types.ConsensusLog{Kind: types.LogScheduledChange, Change: change}
		if pc.Forced != nil {
			log = types.ConsensusLog{Kind: types.LogForcedChange, Change: change, Index: uint64(*pc.Forced)}
		}
		m.deposit(ctx, log)
	}
	if n == pc.ScheduledAt+pc.Delay {
		authorityList.Put(s, VersionedAuthorityList{Version: AuthoritiesVersion, Authorities: pc.NextAuthorities})
		currentSetID.Mutate(s, func(id *uint64) { *id++ })
		pendingChange.Kill(s)
		ctx.DepositEvent(ModuleName, EventNewAuthorities, NewAuthorities{Authorities: pc.NextAuthorities})
	}
	return nil
}

func (m *Module) deposit(ctx *frame.Context, log types.ConsensusLog) {
	m.cfg.Digest.DepositLog(ctx, types.DigestItem{
		Kind:   types.DigestConsensus,
		Engine: types.GrandpaEngineID,
		Data:   types.MustEncode(log),
	})
}

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

func (m *Module) ValidateUnsigned(_ *frame.Context, _ types.TransactionSource, call frame.CallView) (types.ValidTransaction, error) {
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
