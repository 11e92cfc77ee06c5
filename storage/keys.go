package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/rtcore/hashing"
	"github.com/blockberries/rtcore/types"
)

// ModulePrefix returns twox128(module).
func ModulePrefix(module string) []byte {
	p := hashing.Twox128([]byte(module))
	return p[:]
}

// ItemPrefix returns twox128(module) ++ twox128(item).
func ItemPrefix(module, item string) []byte {
	i := hashing.Twox128([]byte(item))
	return append(ModulePrefix(module), i[:]...)
}

// envelope wraps stored values so that any T encodes as a message.
type envelope[T any] struct {
	V T `cramberry:"1"`
}

func encodeValue[T any](v T) []byte {
	bz, err := cramberry.Marshal(envelope[T]{V: v})
	if err != nil {
		panic(fmt.Sprintf("storage: encode %T: %v", v, err))
	}
	return bz
}

func decodeValue[T any](where string, bz []byte) T {
	var e envelope[T]
	if err := cramberry.Unmarshal(bz, &e); err != nil {
		panic(fmt.Sprintf("storage: corrupt value at %s: %v", where, err))
	}
	return e.V
}

// KeyCodec encodes map keys.
type KeyCodec[K any] struct {
	Name   string
	Encode func(K) []byte
	Decode func([]byte) (K, bool)
}

// AccountKey encodes account ids as their 32 raw bytes.
var AccountKey = KeyCodec[types.AccountID]{
	Name:   "AccountId",
	Encode: func(a types.AccountID) []byte { return append([]byte(nil), a[:]...) },
	Decode: func(b []byte) (types.AccountID, bool) {
		var a types.AccountID
		if len(b) != len(a) {
			return a, false
		}
		copy(a[:], b)
		return a, true
	},
}

// BlockNumberKey encodes block numbers as 4 little-endian bytes.
var BlockNumberKey = KeyCodec[types.BlockNumber]{
	Name: "BlockNumber",
	Encode: func(n types.BlockNumber) []byte {
		return binary.LittleEndian.AppendUint32(nil, uint32(n))
	},
	Decode: func(b []byte) (types.BlockNumber, bool) {
		if len(b) != 4 {
			return 0, false
		}
		return types.BlockNumber(binary.LittleEndian.Uint32(b)), true
	},
}

// Uint64Key encodes uint64 keys as 8 little-endian bytes.
var Uint64Key = KeyCodec[uint64]{
	Name:   "u64",
	Encode: func(n uint64) []byte { return binary.LittleEndian.AppendUint64(nil, n) },
	Decode: func(b []byte) (uint64, bool) {
		if len(b) != 8 {
			return 0, false
		}
		return binary.LittleEndian.Uint64(b), true
	},
}
