package rtgrpc

import "github.com/blockberries/rtcore/types"

// Transport-specific wrapper types for RPC methods whose interface
// signatures don't map to a single request/response struct.
// These are used only for gRPC serialization boundaries.

// Empty is the request of parameterless methods.
type Empty struct{}

// AtRequest names the block whose post-state a query reads.
type AtRequest struct {
	At types.Hash `cramberry:"1"`
}

// BuilderRef identifies an open block builder.
type BuilderRef struct {
	ID string `cramberry:"1"`
}

type ApplyExtrinsicRequest struct {
	ID        string          `cramberry:"1"`
	Extrinsic types.Extrinsic `cramberry:"2"`
}

type MetadataResponse struct {
	Metadata types.OpaqueMetadata `cramberry:"1"`
}

type InherentExtrinsicsRequest struct {
	At   types.Hash         `cramberry:"1"`
	Data types.InherentData `cramberry:"2"`
}

type ExtrinsicsResponse struct {
	Extrinsics []types.Extrinsic `cramberry:"1"`
}

type CheckInherentsRequest struct {
	At    types.Hash         `cramberry:"1"`
	Block types.Block        `cramberry:"2"`
	Data  types.InherentData `cramberry:"3"`
}

type HashResponse struct {
	Hash types.Hash `cramberry:"1"`
}

type ValidateTransactionRequest struct {
	At        types.Hash              `cramberry:"1"`
	Source    types.TransactionSource `cramberry:"2"`
	Extrinsic types.Extrinsic         `cramberry:"3"`
}

type StorageRequest struct {
	At  types.Hash `cramberry:"1"`
	Key []byte     `cramberry:"2"`
}

// BytesMessage carries raw bytes: a storage value, a session key seed
// or encoded session keys.
type BytesMessage struct {
	Data []byte `cramberry:"1"`
}

type SessionKeysResponse struct {
	Keys []types.SessionKey `cramberry:"1"`
}

type SlotResponse struct {
	Slot types.Slot `cramberry:"1"`
}

type KeyOwnershipProofRequest struct {
	At        types.Hash              `cramberry:"1"`
	Engine    types.ConsensusEngineID `cramberry:"2"`
	SlotOrSet uint64                  `cramberry:"3"`
	Authority types.AuthorityID       `cramberry:"4"`
}

type KeyOwnershipProofResponse struct {
	Proof types.KeyOwnershipProof `cramberry:"1"`
}

type EquivocationReportRequest struct {
	At     types.Hash              `cramberry:"1"`
	Engine types.ConsensusEngineID `cramberry:"2"`
	Proof  types.EquivocationProof `cramberry:"3"`
	Owner  types.KeyOwnershipProof `cramberry:"4"`
}
