package frame

import (
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// System is the block bookkeeping module. It must be registered first.
type System interface {
	Module
	ChainInfo
	DigestSink

	Weights() BlockWeights
	Length() BlockLength

	// InitializeBlock records the header and resets per-block state.
	InitializeBlock(ctx *Context, header *types.Header)
	// NoteFinishedInitialize moves events into the extrinsic phase.
	NoteFinishedInitialize(ctx *Context)
	// RegisterExtraWeight charges w to class, unchecked.
	RegisterExtraWeight(ctx *Context, w types.Weight, class types.DispatchClass)
	// BlockWeight returns the weight used so far in this block.
	BlockWeight(r storage.Reader) ConsumedWeight
	// NoteExtrinsic records the encoded extrinsic being applied.
	NoteExtrinsic(ctx *Context, encoded []byte)
	// NoteAppliedExtrinsic emits the success or failure event and
	// advances the extrinsic index.
	NoteAppliedExtrinsic(ctx *Context, dispatchErr *types.DispatchError, info types.DispatchInfo)
	// NoteFinishedExtrinsics closes the extrinsic phase.
	NoteFinishedExtrinsics(ctx *Context)
	// FinalizeBlock computes the extrinsics root and digest and returns
	// the header without its state root.
	FinalizeBlock(ctx *Context) types.Header
	// DepositEvent appends ev to the event log in the current phase.
	DepositEvent(ctx *Context, ev types.Event)
	// Events returns the event log of the current block.
	Events(r storage.Reader) []types.EventRecord
}

// ChainInfo exposes block bookkeeping to other modules.
type ChainInfo interface {
	BlockNumber(r storage.Reader) types.BlockNumber
	ParentHash(r storage.Reader) types.Hash
	// BlockHash returns the hash of block n if it is still recorded.
	BlockHash(r storage.Reader, n types.BlockNumber) (types.Hash, bool)
}

// DigestSink accepts header digest items.
type DigestSink interface {
	DepositLog(ctx *Context, item types.DigestItem)
	Digest(r storage.Reader) types.Digest
}

// AccountStore holds per-account balance data.
type AccountStore interface {
	AccountData(r storage.Reader, who types.AccountID) types.AccountData
	AccountExists(r storage.Reader, who types.AccountID) bool
	// MutateAccountData applies fn to who's data. The account is
	// created when it first holds funds and removed when it holds
	// none. fn returning an error leaves the account unchanged.
	MutateAccountData(ctx *Context, who types.AccountID, fn func(data *types.AccountData, exists bool) error) error
}

// RandomnessSource yields low-influence randomness.
type RandomnessSource interface {
	Random(r storage.Reader, subject []byte) types.Hash
}
