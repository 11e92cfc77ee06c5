// Package crypto implements the signature schemes accepted in signed
// extrinsics, and development keypairs for tests and tooling.
package crypto

import (
	"crypto/ed25519"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/blockberries/rtcore/hashing"
	"github.com/blockberries/rtcore/types"
)

// Keypair signs extrinsic payloads.
type Keypair interface {
	// Account returns the account id controlled by the keypair.
	Account() types.AccountID
	// Sign signs msg.
	Sign(msg []byte) types.MultiSignature
}

// Ed25519 is an ed25519 keypair. Its account id is its public key.
type Ed25519 struct {
	priv ed25519.PrivateKey
}

// NewEd25519 derives an ed25519 keypair from a 32-byte seed.
func NewEd25519(seed [32]byte) *Ed25519 {
	return &Ed25519{priv: ed25519.NewKeyFromSeed(seed[:])}
}

// Public returns the raw public key.
func (k *Ed25519) Public() [32]byte {
	var pub [32]byte
	copy(pub[:], k.priv.Public().(ed25519.PublicKey))
	return pub
}

func (k *Ed25519) Account() types.AccountID { return types.AccountID(k.Public()) }

func (k *Ed25519) Sign(msg []byte) types.MultiSignature {
	return types.MultiSignature{Kind: types.SigEd25519, Data: ed25519.Sign(k.priv, msg)}
}

// Secp256k1 is an ECDSA keypair. Its account id is blake2b-256 of the
// compressed public key, which verifiers recover from the signature.
type Secp256k1 struct {
	priv *secp256k1.PrivateKey
}

// NewSecp256k1 derives a secp256k1 keypair from a 32-byte seed.
func NewSecp256k1(seed [32]byte) *Secp256k1 {
	return &Secp256k1{priv: secp256k1.PrivKeyFromBytes(seed[:])}
}

func (k *Secp256k1) Account() types.AccountID {
	return types.AccountID(hashing.Blake2b256(k.priv.PubKey().SerializeCompressed()))
}

func (k *Secp256k1) Sign(msg []byte) types.MultiSignature {
	digest := hashing.Blake2b256(msg)
	return types.MultiSignature{Kind: types.SigEcdsa, Data: ecdsa.SignCompact(k.priv, digest[:], true)}
}

// Verify checks sig over msg against signer.
func Verify(sig types.MultiSignature, msg []byte, signer types.AccountID) bool {
	switch sig.Kind {
	case types.SigEd25519:
		if len(sig.Data) != ed25519.SignatureSize {
			return false
		}
		return ed25519.Verify(ed25519.PublicKey(signer[:]), msg, sig.Data)
	case types.SigEcdsa:
		if len(sig.Data) != 65 {
			return false
		}
		digest := hashing.Blake2b256(msg)
		pub, _, err := ecdsa.RecoverCompact(sig.Data, digest[:])
		if err != nil {
			return false
		}
		return types.AccountID(hashing.Blake2b256(pub.SerializeCompressed())) == signer
	default:
		return false
	}
}

// Dev returns the deterministic ed25519 development keypair for name,
// such as "Alice".
func Dev(name string) *Ed25519 {
	return NewEd25519(hashing.Blake2b256([]byte("//" + name)))
}

// Sign builds a signed extrinsic for call with the given extra values.
func Sign(k Keypair, call types.Call, extra types.SignedExtra) types.Extrinsic {
	payload := types.SigningPayload(call, extra)
	return types.Extrinsic{
		Version: types.ExtrinsicVersion,
		Signature: &types.ExtrinsicSignature{
			Signer:    k.Account(),
			Signature: k.Sign(payload),
			Extra:     extra,
		},
		Call: call,
	}
}

// VerifyExtrinsic checks the signature of a signed extrinsic.
func VerifyExtrinsic(xt *types.Extrinsic) error {
	if xt.Signature == nil {
		return fmt.Errorf("crypto: extrinsic is unsigned")
	}
	s := xt.Signature
	if !Verify(s.Signature, types.SigningPayload(xt.Call, s.Extra), s.Signer) {
		return fmt.Errorf("crypto: bad signature from %s", s.Signer)
	}
	return nil
}
