package types

import (
	"math"

	"github.com/blockberries/rtcore/hashing"
)

// ExtrinsicVersion is the only extrinsic format this runtime accepts.
const ExtrinsicVersion uint8 = 4

// Call selects one action of one module. Args is the encoded argument
// struct of that action.
type Call struct {
	Module   uint8  `cramberry:"1"`
	Function uint8  `cramberry:"2"`
	Args     []byte `cramberry:"3"`
}

// SignatureKind discriminates MultiSignature.
type SignatureKind uint8

const (
	SigEd25519 SignatureKind = iota
	SigEcdsa
)

// MultiSignature is a signature of one of the supported schemes.
type MultiSignature struct {
	Kind SignatureKind `cramberry:"1"`
	Data []byte        `cramberry:"2"`
}

// Era is the mortality window of a signed extrinsic. A zero Period
// means the extrinsic is immortal and anchored at genesis.
type Era struct {
	Period uint32      `cramberry:"1"`
	Birth  BlockNumber `cramberry:"2"`
}

// Immortal returns the era of an extrinsic that never expires.
func Immortal() Era { return Era{} }

// Mortal returns an era valid for period blocks starting at birth.
func Mortal(birth BlockNumber, period uint32) Era {
	return Era{Period: period, Birth: birth}
}

// IsImmortal reports whether the era never expires.
func (e Era) IsImmortal() bool { return e.Period == 0 }

// Death returns the first block number at which the extrinsic is no
// longer valid.
func (e Era) Death() BlockNumber {
	if e.IsImmortal() {
		return math.MaxUint32
	}
	d := uint64(e.Birth) + uint64(e.Period)
	if d > math.MaxUint32 {
		return math.MaxUint32
	}
	return BlockNumber(d)
}

// SignedExtra carries the values checked by the signed extension
// chain, in chain order. The weight check carries no value.
type SignedExtra struct {
	SpecVersion    uint32 `cramberry:"1"`
	TxVersion      uint32 `cramberry:"2"`
	GenesisHash    Hash   `cramberry:"3"`
	Era            Era    `cramberry:"4"`
	CheckpointHash Hash   `cramberry:"5"`
	Nonce          uint32 `cramberry:"6"`
}

// ExtrinsicSignature is the signed part of a signed extrinsic.
type ExtrinsicSignature struct {
	Signer    AccountID      `cramberry:"1"`
	Signature MultiSignature `cramberry:"2"`
	Extra     SignedExtra    `cramberry:"3"`
}

// Extrinsic is a signed transaction or an unsigned inherent.
type Extrinsic struct {
	Version   uint8               `cramberry:"1"`
	Signature *ExtrinsicSignature `cramberry:"2"`
	Call      Call                `cramberry:"3"`
}

// NewUnsigned returns an unsigned extrinsic carrying call.
func NewUnsigned(call Call) Extrinsic {
	return Extrinsic{Version: ExtrinsicVersion, Call: call}
}

// IsSigned reports whether the extrinsic carries a signature.
func (x *Extrinsic) IsSigned() bool { return x.Signature != nil }

// Encode returns the canonical encoding of the extrinsic.
func (x *Extrinsic) Encode() []byte { return MustEncode(x) }

// Hash returns blake2b-256 of the encoded extrinsic.
func (x *Extrinsic) Hash() Hash { return hashing.Blake2b256(x.Encode()) }

// DecodeExtrinsic decodes an encoded extrinsic.
func DecodeExtrinsic(data []byte) (Extrinsic, error) {
	var x Extrinsic
	err := Decode(data, &x)
	return x, err
}

type signingPayload struct {
	Call  Call        `cramberry:"1"`
	Extra SignedExtra `cramberry:"2"`
}

// SigningPayload returns the bytes a signer signs for call and extra.
// Payloads over 256 bytes are replaced by their blake2b-256 digest.
func SigningPayload(call Call, extra SignedExtra) []byte {
	b := MustEncode(signingPayload{Call: call, Extra: extra})
	if len(b) > 256 {
		h := hashing.Blake2b256(b)
		return h[:]
	}
	return b
}
