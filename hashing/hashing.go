// Package hashing provides the hash primitives used for block hashes,
// storage key derivation and randomness.
//
// Blake2 digests come from golang.org/x/crypto/blake2b. The "twox"
// family is two or more xxhash64 digests with consecutive seeds,
// concatenated little-endian.
package hashing

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"
)

// Blake2b256 returns the 32-byte blake2b digest of data.
func Blake2b256(data ...[]byte) [32]byte {
	h, _ := blake2b.New256(nil)
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Blake2b128 returns the 16-byte blake2b digest of data.
func Blake2b128(data []byte) [16]byte {
	var out [16]byte
	copy(out[:], sized(16, data))
	return out
}

// Blake2b64 returns the 8-byte blake2b digest of data.
func Blake2b64(data []byte) [8]byte {
	var out [8]byte
	copy(out[:], sized(8, data))
	return out
}

// Blake2b512 returns the 64-byte blake2b digest of data.
func Blake2b512(data ...[]byte) [64]byte {
	h, _ := blake2b.New512(nil)
	for _, d := range data {
		h.Write(d)
	}
	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}

func sized(size int, data []byte) []byte {
	h, err := blake2b.New(size, nil)
	if err != nil {
		panic("hashing: invalid blake2b size")
	}
	h.Write(data)
	return h.Sum(nil)
}

// Twox64 returns xxhash64 of data with seed 0, little-endian.
func Twox64(data []byte) [8]byte {
	var out [8]byte
	binary.LittleEndian.PutUint64(out[:], xxhash.Sum64(data))
	return out
}

// Twox128 returns xxhash64 with seeds 0 and 1, concatenated.
func Twox128(data []byte) [16]byte {
	var out [16]byte
	binary.LittleEndian.PutUint64(out[:8], xxhash.Sum64(data))
	d := xxhash.NewWithSeed(1)
	d.Write(data)
	binary.LittleEndian.PutUint64(out[8:], d.Sum64())
	return out
}

// Hasher maps a storage map key to its hashed form.
type Hasher uint8

const (
	// Identity appends the key unchanged. Only safe for keys the
	// caller does not control.
	Identity Hasher = iota
	// Blake2_128Concat prefixes the key with its blake2b-128 digest.
	Blake2_128Concat
	// Twox64Concat prefixes the key with its twox64 digest.
	Twox64Concat
)

// Hash returns the hashed key.
func (h Hasher) Hash(key []byte) []byte {
	switch h {
	case Blake2_128Concat:
		d := Blake2b128(key)
		return append(d[:], key...)
	case Twox64Concat:
		d := Twox64(key)
		return append(d[:], key...)
	default:
		return append([]byte(nil), key...)
	}
}

// Strip returns the raw key from a hashed key produced by Hash.
// It returns nil when the hashed key is too short.
func (h Hasher) Strip(hashed []byte) []byte {
	n := 0
	switch h {
	case Blake2_128Concat:
		n = 16
	case Twox64Concat:
		n = 8
	}
	if len(hashed) < n {
		return nil
	}
	return hashed[n:]
}

func (h Hasher) String() string {
	switch h {
	case Blake2_128Concat:
		return "Blake2_128Concat"
	case Twox64Concat:
		return "Twox64Concat"
	default:
		return "Identity"
	}
}
