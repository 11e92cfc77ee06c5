// Package system is the block bookkeeping module: block number and
// hashes, per-block weight and length, the event log, the digest and
// account records. It also provides the signed extension chain.
package system

import (
	"go.uber.org/zap"

	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/hashing"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// ModuleName is the name the module registers under.
const ModuleName = "System"

// Event variants.
const (
	EventExtrinsicSuccess uint8 = iota
	EventExtrinsicFailed
	EventNewAccount
	EventKilledAccount
	EventRemarked
)

type ExtrinsicSuccess struct {
	Info types.DispatchInfo `cramberry:"1"`
}

type ExtrinsicFailed struct {
	Error types.DispatchError `cramberry:"1"`
	Info  types.DispatchInfo  `cramberry:"2"`
}

type NewAccount struct {
	Account types.AccountID `cramberry:"1"`
}

type KilledAccount struct {
	Account types.AccountID `cramberry:"1"`
}

type Remarked struct {
	Sender types.AccountID `cramberry:"1"`
	Hash   types.Hash      `cramberry:"2"`
}

// Config configures the module.
type Config struct {
	BlockWeights frame.BlockWeights
	BlockLength  frame.BlockLength
	// BlockHashCount is how many recent block hashes are kept.
	BlockHashCount types.BlockNumber
}

// DefaultConfig returns the default limits with 2400 retained hashes.
func DefaultConfig() Config {
	return Config{
		BlockWeights:   frame.DefaultBlockWeights(),
		BlockLength:    frame.DefaultBlockLength(),
		BlockHashCount: 2400,
	}
}

var (
	account = storage.NewMap[types.AccountID, types.AccountInfo](
		ModuleName, "Account", hashing.Blake2_128Concat, storage.AccountKey)
	extrinsicCount   = storage.NewValue[uint32](ModuleName, "ExtrinsicCount")
	blockWeight      = storage.NewValue[frame.ConsumedWeight](ModuleName, "BlockWeight")
	allExtrinsicsLen = storage.NewValue[uint32](ModuleName, "AllExtrinsicsLen")
	blockHash        = storage.NewMap[types.BlockNumber, types.Hash](
		ModuleName, "BlockHash", hashing.Twox64Concat, storage.BlockNumberKey)
	extrinsicData = storage.NewMap[uint64, []byte](
		ModuleName, "ExtrinsicData", hashing.Twox64Concat, storage.Uint64Key)
	number         = storage.NewValue[types.BlockNumber](ModuleName, "Number")
	parentHash     = storage.NewValue[types.Hash](ModuleName, "ParentHash")
	digest         = storage.NewValue[types.Digest](ModuleName, "Digest")
	events         = storage.NewValue[[]types.EventRecord](ModuleName, "Events")
	eventCount     = storage.NewValue[uint32](ModuleName, "EventCount")
	executionPhase = storage.NewValue[types.Phase](ModuleName, "ExecutionPhase")
	extrinsicIndex = storage.NewWellKnown[uint32](ModuleName, "ExtrinsicIndex", []byte(":extrinsic_index"))
)

// hash69 marks the parent of genesis until block 1 records the real
// genesis hash.
var hash69 = func() types.Hash {
	var h types.Hash
	for i := range h {
		h[i] = 69
	}
	return h
}()

// Module is the system module.
type Module struct {
	frame.Base
	cfg Config
}

var (
	_ frame.System         = (*Module)(nil)
	_ frame.AccountStore   = (*Module)(nil)
	_ frame.GenesisBuilder = (*Module)(nil)
)

// New returns the system module.
func New(cfg Config) *Module {
	m := &Module{cfg: cfg}
	m.Base = frame.NewBase(ModuleName, frame.Spec{
		Calls: []frame.CallSpec{
			frame.NewCall("remark", frame.AnyOrigin, weighRemark, m.remark),
			frame.NewCall("fill_block", frame.RootOrigin, m.weighFillBlock, m.fillBlock),
			frame.NewCall("set_storage", frame.RootOrigin, m.weighSetStorage, m.setStorage),
			frame.NewCall("kill_storage", frame.RootOrigin, m.weighKillStorage, m.killStorage),
			frame.NewCall("kill_prefix", frame.RootOrigin, m.weighKillPrefix, m.killPrefix),
		},
		Events: []frame.EventSpec{
			frame.NewEvent[ExtrinsicSuccess]("ExtrinsicSuccess"),
			frame.NewEvent[ExtrinsicFailed]("ExtrinsicFailed"),
			frame.NewEvent[NewAccount]("NewAccount"),
			frame.NewEvent[KilledAccount]("KilledAccount"),
			frame.NewEvent[Remarked]("Remarked"),
		},
		Constants: []frame.Constant{
			frame.NewConstant("BlockHashCount", cfg.BlockHashCount),
			frame.NewConstant("MaximumBlockWeight", cfg.BlockWeights.MaxBlock),
			frame.NewConstant("ExtrinsicBaseWeight", cfg.BlockWeights.ExtrinsicBase),
			frame.NewConstant("BlockExecutionWeight", cfg.BlockWeights.BaseBlock),
			frame.NewConstant("MaximumBlockLength", cfg.BlockLength.Max),
			frame.NewConstant("DbReadWeight", cfg.BlockWeights.DB.Read),
			frame.NewConstant("DbWriteWeight", cfg.BlockWeights.DB.Write),
		},
		Storage: []frame.Item{
			account, extrinsicCount, blockWeight, allExtrinsicsLen, blockHash, extrinsicData,
			number, parentHash, digest, events, eventCount, executionPhase, extrinsicIndex,
		},
	})
	return m
}

func (m *Module) Weights() frame.BlockWeights { return m.cfg.BlockWeights }

func (m *Module) Length() frame.BlockLength { return m.cfg.BlockLength }

// BuildGenesis records the placeholder parent of genesis.
func (m *Module) BuildGenesis(ctx *frame.Context) error {
	blockHash.Insert(ctx.Store, 0, hash69)
	parentHash.Put(ctx.Store, hash69)
	extrinsicIndex.Put(ctx.Store, 0)
	return nil
}

func (m *Module) InitializeBlock(ctx *frame.Context, header *types.Header) {
	s := ctx.Store
	executionPhase.Put(s, types.Phase{Kind: types.PhaseInitialization})
	extrinsicIndex.Put(s, 0)
	number.Put(s, header.Number)
	digest.Put(s, header.Digest)
	parentHash.Put(s, header.ParentHash)
	if header.Number > 0 {
		blockHash.Insert(s, header.Number-1, header.ParentHash)
	}
	blockWeight.Kill(s)
	allExtrinsicsLen.Kill(s)
	events.Kill(s)
	eventCount.Kill(s)
}

func (m *Module) NoteFinishedInitialize(ctx *frame.Context) {
	executionPhase.Put(ctx.Store, types.ApplyExtrinsicPhase(0))
}

func (m *Module) RegisterExtraWeight(ctx *frame.Context, w types.Weight, class types.DispatchClass) {
	blockWeight.Mutate(ctx.Store, func(c *frame.ConsumedWeight) { c.Add(class, w) })
}

func (m *Module) BlockWeight(r storage.Reader) frame.ConsumedWeight { return blockWeight.Load(r) }

// AllExtrinsicsLen returns the encoded length of the extrinsics
// applied so far.
func (m *Module) AllExtrinsicsLen(r storage.Reader) uint32 { return allExtrinsicsLen.Load(r) }

func (m *Module) NoteExtrinsic(ctx *frame.Context, encoded []byte) {
	extrinsicData.Insert(ctx.Store, uint64(extrinsicIndex.Load(ctx.Store)), encoded)
}

func (m *Module) NoteAppliedExtrinsic(ctx *frame.Context, dispatchErr *types.DispatchError, info types.DispatchInfo) {
	if dispatchErr == nil {
		ctx.DepositEvent(ModuleName, EventExtrinsicSuccess, ExtrinsicSuccess{Info: info})
	} else {
		ctx.DepositEvent(ModuleName, EventExtrinsicFailed, ExtrinsicFailed{Error: *dispatchErr, Info: info})
		ctx.Logger().Debug("extrinsic failed",
			zap.Uint32("index", extrinsicIndex.Load(ctx.Store)),
			zap.Error(dispatchErr))
	}
	next := extrinsicIndex.Load(ctx.Store) + 1
	extrinsicIndex.Put(ctx.Store, next)
	executionPhase.Put(ctx.Store, types.ApplyExtrinsicPhase(next))
}

func (m *Module) NoteFinishedExtrinsics(ctx *frame.Context) {
	extrinsicCount.Put(ctx.Store, extrinsicIndex.Load(ctx.Store))
	executionPhase.Put(ctx.Store, types.Phase{Kind: types.PhaseFinalization})
}

func (m *Module) FinalizeBlock(ctx *frame.Context) types.Header {
	s := ctx.Store
	executionPhase.Kill(s)
	allExtrinsicsLen.Kill(s)

	n := number.Load(s)
	count, _ := extrinsicCount.Take(s)
	xts := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		bz, _ := extrinsicData.Get(s, uint64(i))
		xts = append(xts, bz)
		extrinsicData.Remove(s, uint64(i))
	}

	if n > m.cfg.BlockHashCount+1 {
		blockHash.Remove(s, n-m.cfg.BlockHashCount-1)
	}

	return types.Header{
		ParentHash:     parentHash.Load(s),
		Number:         n,
		ExtrinsicsRoot: ctx.Runtime().Hasher().OrderedRoot(xts),
		Digest:         digest.Load(s),
	}
}

func (m *Module) DepositEvent(ctx *frame.Context, ev types.Event) {
	phase, ok := executionPhase.Get(ctx.Store)
	if !ok {
		// Genesis and queries run outside a block.
		return
	}
	events.Mutate(ctx.Store, func(log *[]types.EventRecord) {
		*log = append(*log, types.EventRecord{Phase: phase, Event: ev})
	})
	eventCount.Mutate(ctx.Store, func(n *uint32) { *n++ })
}

func (m *Module) Events(r storage.Reader) []types.EventRecord { return events.Load(r) }

func (m *Module) BlockNumber(r storage.Reader) types.BlockNumber { return number.Load(r) }

func (m *Module) ParentHash(r storage.Reader) types.Hash { return parentHash.Load(r) }

func (m *Module) BlockHash(r storage.Reader, n types.BlockNumber) (types.Hash, bool) {
	return blockHash.Get(r, n)
}

// SetBlockHash records the hash of block n. Validation uses it to
// make the snapshot block's hash visible before the next block is
// initialized.
func (m *Module) SetBlockHash(ctx *frame.Context, n types.BlockNumber, h types.Hash) {
	blockHash.Insert(ctx.Store, n, h)
}

func (m *Module) DepositLog(ctx *frame.Context, item types.DigestItem) {
	digest.Mutate(ctx.Store, func(d *types.Digest) { d.Push(item) })
}

func (m *Module) Digest(r storage.Reader) types.Digest { return digest.Load(r) }
