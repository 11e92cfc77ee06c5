// Package types defines the wire types shared by the runtime, its
// modules and its transports.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization. Tagged unions are structs with
// a kind discriminator or optional pointer arms.
package types

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/bits"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// Hash is a 32-byte blake2b digest.
type Hash [32]byte

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

// BlockNumber is the height of a block. Genesis is 0.
type BlockNumber uint32

// Slot is a BABE slot number.
type Slot uint64

// Moment is a timestamp in milliseconds since the Unix epoch.
type Moment uint64

// Balance is an amount of the native token.
type Balance uint64

// SaturatingAdd returns b+o, clamped at the maximum balance.
func (b Balance) SaturatingAdd(o Balance) Balance {
	s, carry := bits.Add64(uint64(b), uint64(o), 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return Balance(s)
}

// SaturatingSub returns b-o, clamped at zero.
func (b Balance) SaturatingSub(o Balance) Balance {
	if o > b {
		return 0
	}
	return b - o
}

// Weight is the abstract execution cost unit.
type Weight uint64

// MaxWeight is the saturation point of weight arithmetic.
const MaxWeight = Weight(math.MaxUint64)

// SaturatingAdd returns w+o, clamped at MaxWeight.
func (w Weight) SaturatingAdd(o Weight) Weight {
	s, carry := bits.Add64(uint64(w), uint64(o), 0)
	if carry != 0 {
		return MaxWeight
	}
	return Weight(s)
}

// SaturatingSub returns w-o, clamped at zero.
func (w Weight) SaturatingSub(o Weight) Weight {
	if o > w {
		return 0
	}
	return w - o
}

// SaturatingMul returns w*n, clamped at MaxWeight.
func (w Weight) SaturatingMul(n uint64) Weight {
	hi, lo := bits.Mul64(uint64(w), n)
	if hi != 0 {
		return MaxWeight
	}
	return Weight(lo)
}

// Perbill is a fraction in parts per billion.
type Perbill uint32

const billion = 1_000_000_000

// PercentOf returns a Perbill of p percent, clamped at 100.
func PercentOf(p uint32) Perbill {
	if p > 100 {
		p = 100
	}
	return Perbill(p * 10_000_000)
}

// Mul returns floor(x * p).
func (p Perbill) Mul(x uint64) uint64 {
	if p >= billion {
		return x
	}
	hi, lo := bits.Mul64(x, uint64(p))
	q, _ := bits.Div64(hi, lo, billion)
	return q
}

// SaturatingSub returns p-o, clamped at zero.
func (p Perbill) SaturatingSub(o Perbill) Perbill {
	if o > p {
		return 0
	}
	return p - o
}

// Encode returns the cramberry encoding of v.
func Encode(v any) ([]byte, error) {
	return cramberry.Marshal(v)
}

// MustEncode is Encode for values whose encoding cannot fail, such as
// the types of this package. It panics otherwise.
func MustEncode(v any) []byte {
	b, err := cramberry.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("types: encode %T: %v", v, err))
	}
	return b
}

// Decode decodes data into v, which must be a pointer.
func Decode(data []byte, v any) error {
	return cramberry.Unmarshal(data, v)
}
