package types

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/blockberries/rtcore/hashing"
)

// AccountID identifies an account. For ed25519 signers it is the
// public key; for ecdsa signers it is blake2b-256 of the compressed
// public key.
type AccountID [32]byte

// SS58Prefix is the address network prefix used when rendering
// account ids.
const SS58Prefix = 42

var ss58Magic = []byte("SS58PRE")

// ErrBadAddress is returned by ParseAccountID for malformed input.
var ErrBadAddress = errors.New("types: malformed ss58 address")

// String renders the account as an SS58 address.
func (a AccountID) String() string {
	payload := make([]byte, 0, 35)
	payload = append(payload, SS58Prefix)
	payload = append(payload, a[:]...)
	sum := hashing.Blake2b512(ss58Magic, payload)
	payload = append(payload, sum[0], sum[1])
	return base58.Encode(payload)
}

// Hex renders the raw account bytes.
func (a AccountID) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// ParseAccountID decodes an SS58 address or a 0x-prefixed hex string.
func ParseAccountID(s string) (AccountID, error) {
	var id AccountID
	if len(s) == 66 && s[:2] == "0x" {
		raw, err := hex.DecodeString(s[2:])
		if err != nil {
			return id, fmt.Errorf("%w: %v", ErrBadAddress, err)
		}
		copy(id[:], raw)
		return id, nil
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrBadAddress, err)
	}
	if len(raw) != 35 || raw[0] != SS58Prefix {
		return id, ErrBadAddress
	}
	sum := hashing.Blake2b512(ss58Magic, raw[:33])
	if !bytes.Equal(sum[:2], raw[33:]) {
		return id, fmt.Errorf("%w: checksum", ErrBadAddress)
	}
	copy(id[:], raw[1:33])
	return id, nil
}

// AccountData is the balance portion of an account.
type AccountData struct {
	Free       Balance `cramberry:"1"`
	Reserved   Balance `cramberry:"2"`
	MiscFrozen Balance `cramberry:"3"`
	FeeFrozen  Balance `cramberry:"4"`
}

// Total returns free plus reserved.
func (d AccountData) Total() Balance { return d.Free.SaturatingAdd(d.Reserved) }

// IsZero reports whether the account holds nothing.
func (d AccountData) IsZero() bool { return d == AccountData{} }

// AccountInfo is the per-account record kept by the system module.
type AccountInfo struct {
	Nonce    uint32      `cramberry:"1"`
	RefCount uint32      `cramberry:"2"`
	Data     AccountData `cramberry:"3"`
}
