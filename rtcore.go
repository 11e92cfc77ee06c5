// Package rtcore defines the boundary of a deterministic blockchain
// runtime: the calls a consensus engine, a transaction pool and an
// RPC layer make into the state transition function.
//
// The core interfaces ([Core], [Metadata], [BlockBuilderAPI] and
// [TaggedTransactionQueue]) are required. Consensus parameter and key
// management interfaces are optional capabilities declared in
// [types.RuntimeVersion.Apis] and discovered via Go type assertion.
//
// Every query runs against an immutable [storage.Snapshot] and owns
// its scratch state, so queries are safe for concurrent use.
package rtcore

import (
	"context"

	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// API names as listed in RuntimeVersion.Apis.
const (
	APICore                   = "Core"
	APIMetadata               = "Metadata"
	APIBlockBuilder           = "BlockBuilder"
	APITaggedTransactionQueue = "TaggedTransactionQueue"
	APISessionKeys            = "SessionKeys"
	APIBabe                   = "BabeApi"
	APIGrandpa                = "GrandpaApi"
)

// BlockResult is the outcome of building or executing a block: the
// final header and the state changes relative to the parent state.
// The changes are committed by the storage backend, never by the
// runtime.
type BlockResult struct {
	Header  types.Header
	Changes storage.ChangeSet
}

// Hash returns the hash of the resulting header.
func (r *BlockResult) Hash() types.Hash { return r.Header.Hash() }

// Core is the interface every runtime must implement.
type Core interface {
	// Version identifies the state transition logic.
	Version() types.RuntimeVersion

	// BuildGenesis computes the genesis block over the empty state.
	BuildGenesis(ctx context.Context) (BlockResult, error)

	// ExecuteBlock re-executes an imported block on its parent state.
	//
	// Every extrinsic must apply; any validity failure, a mismatched
	// extrinsics root or a header differing from the computed one
	// fails the whole block with a *BlockError. Executing the same
	// block on the same parent always yields the same result.
	ExecuteBlock(ctx context.Context, parent storage.Snapshot, block types.Block) (BlockResult, error)

	// InitializeBlock starts building a block on parent. The returned
	// builder is single-use and not safe for concurrent use.
	InitializeBlock(ctx context.Context, parent storage.Snapshot, header types.Header) (BlockBuilder, error)
}

// BlockBuilder assembles one block incrementally.
type BlockBuilder interface {
	// ApplyExtrinsic applies xt on top of the block so far. A
	// validity failure is reported in the result and leaves no trace;
	// an error means the builder can no longer be used.
	ApplyExtrinsic(ctx context.Context, xt types.Extrinsic) (types.ApplyExtrinsicResult, error)

	// FinalizeBlock runs the finalization hooks and returns the
	// complete header.
	FinalizeBlock(ctx context.Context) (BlockResult, error)
}

// Metadata describes the runtime's modules.
type Metadata interface {
	Metadata(ctx context.Context) (types.OpaqueMetadata, error)
}

// BlockBuilderAPI serves block authors and importers.
type BlockBuilderAPI interface {
	// InherentExtrinsics builds the inherent extrinsics for data.
	InherentExtrinsics(ctx context.Context, at storage.Snapshot, data types.InherentData) ([]types.Extrinsic, error)

	// CheckInherents checks the inherents of block against this
	// node's inherent data. at is the block's parent state.
	CheckInherents(ctx context.Context, at storage.Snapshot, block types.Block, data types.InherentData) (types.CheckInherentsResult, error)

	// RandomSeed returns low-influence randomness at the given state.
	RandomSeed(ctx context.Context, at storage.Snapshot) (types.Hash, error)
}

// TaggedTransactionQueue validates transactions for the pool.
type TaggedTransactionQueue interface {
	// ValidateTransaction checks xt as if it were included in the
	// block after at. It never modifies state.
	ValidateTransaction(ctx context.Context, at storage.Snapshot, source types.TransactionSource, xt types.Extrinsic) (types.TransactionValidity, error)
}

// SessionKeys manages the keys an authority signs consensus messages
// with. The key material lives in a KeyStore.
//
// Declared via: APISessionKeys in RuntimeVersion.Apis
type SessionKeys interface {
	// GenerateSessionKeys creates one key per session key type and
	// returns the encoded public keys. A nil seed uses fresh entropy.
	GenerateSessionKeys(ctx context.Context, seed []byte) ([]byte, error)

	// DecodeSessionKeys splits encoded session keys into typed keys.
	DecodeSessionKeys(ctx context.Context, encoded []byte) ([]types.SessionKey, error)
}

// BabeAPI exposes the block production parameters.
//
// Declared via: APIBabe in RuntimeVersion.Apis
type BabeAPI interface {
	BabeConfiguration(ctx context.Context, at storage.Snapshot) (types.EpochConfiguration, error)
	CurrentEpochStart(ctx context.Context, at storage.Snapshot) (types.Slot, error)
}

// GrandpaAPI exposes the finality authority set.
//
// Declared via: APIGrandpa in RuntimeVersion.Apis
type GrandpaAPI interface {
	GrandpaAuthorities(ctx context.Context, at storage.Snapshot) (types.AuthoritySet, error)
}

// BabeEquivocation reports block production equivocations. Runtimes
// without a key ownership proof system return ErrUnsupported.
type BabeEquivocation interface {
	GenerateBabeKeyOwnershipProof(ctx context.Context, at storage.Snapshot, slot types.Slot, authority types.AuthorityID) (types.KeyOwnershipProof, error)

	// SubmitBabeEquivocationReport returns the unsigned report
	// extrinsic for the caller to submit to the pool.
	SubmitBabeEquivocationReport(ctx context.Context, at storage.Snapshot, proof types.EquivocationProof, owner types.KeyOwnershipProof) (types.Extrinsic, error)
}

// GrandpaEquivocation reports finality equivocations. Runtimes
// without a key ownership proof system return ErrUnsupported.
type GrandpaEquivocation interface {
	GenerateGrandpaKeyOwnershipProof(ctx context.Context, at storage.Snapshot, setID uint64, authority types.AuthorityID) (types.KeyOwnershipProof, error)
	SubmitGrandpaEquivocationReport(ctx context.Context, at storage.Snapshot, proof types.EquivocationProof, owner types.KeyOwnershipProof) (types.Extrinsic, error)
}

// Runtime embeds the required interfaces.
type Runtime interface {
	Core
	Metadata
	BlockBuilderAPI
	TaggedTransactionQueue
}

// KeyStore holds session key material outside the runtime.
type KeyStore interface {
	// Generate creates a key of keyType from seed, or from fresh
	// entropy if seed is nil, and returns its public key.
	Generate(keyType types.KeyTypeID, seed []byte) ([]byte, error)
	// Sign signs msg with the key of keyType identified by public.
	Sign(keyType types.KeyTypeID, public, msg []byte) ([]byte, error)
	// Has reports whether the private key of public is held.
	Has(keyType types.KeyTypeID, public []byte) bool
}

// BuilderID identifies a block under construction on a Connection.
type BuilderID string

// Connection is a transport-agnostic, hash-addressed connection to a
// runtime and the state it has committed. The in-process server and
// the gRPC client both implement it.
//
// at names the block whose post-state a query reads. Blocks built or
// executed through a connection are committed to its backend when
// they complete successfully.
type Connection interface {
	Version(ctx context.Context) (types.RuntimeVersion, error)

	// Genesis returns the genesis header.
	Genesis(ctx context.Context) (types.Header, error)

	// ExecuteBlock executes block on its parent and commits it.
	ExecuteBlock(ctx context.Context, block types.Block) (types.Header, error)

	// InitializeBlock opens a builder on header.ParentHash.
	InitializeBlock(ctx context.Context, header types.Header) (BuilderID, error)
	ApplyExtrinsic(ctx context.Context, id BuilderID, xt types.Extrinsic) (types.ApplyExtrinsicResult, error)
	// FinalizeBlock closes the builder and commits the block.
	FinalizeBlock(ctx context.Context, id BuilderID) (types.Header, error)

	Metadata(ctx context.Context) (types.OpaqueMetadata, error)
	InherentExtrinsics(ctx context.Context, at types.Hash, data types.InherentData) ([]types.Extrinsic, error)
	CheckInherents(ctx context.Context, at types.Hash, block types.Block, data types.InherentData) (types.CheckInherentsResult, error)
	RandomSeed(ctx context.Context, at types.Hash) (types.Hash, error)
	ValidateTransaction(ctx context.Context, at types.Hash, source types.TransactionSource, xt types.Extrinsic) (types.TransactionValidity, error)

	// Storage reads one raw state value. A missing key yields nil.
	Storage(ctx context.Context, at types.Hash, key []byte) ([]byte, error)

	// Optional capabilities. Each returns ErrUnsupported when the
	// runtime does not provide it.
	GenerateSessionKeys(ctx context.Context, seed []byte) ([]byte, error)
	DecodeSessionKeys(ctx context.Context, encoded []byte) ([]types.SessionKey, error)
	BabeConfiguration(ctx context.Context, at types.Hash) (types.EpochConfiguration, error)
	CurrentEpochStart(ctx context.Context, at types.Hash) (types.Slot, error)
	GrandpaAuthorities(ctx context.Context, at types.Hash) (types.AuthoritySet, error)
	GenerateKeyOwnershipProof(ctx context.Context, at types.Hash, engine types.ConsensusEngineID, slotOrSet uint64, authority types.AuthorityID) (types.KeyOwnershipProof, error)
	SubmitEquivocationReport(ctx context.Context, at types.Hash, engine types.ConsensusEngineID, proof types.EquivocationProof, owner types.KeyOwnershipProof) (types.Extrinsic, error)

	// Close terminates the connection.
	Close() error
}
