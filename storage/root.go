package storage

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"github.com/blockberries/rtcore/types"
)

// RootHasher computes state and extrinsics roots. It is supplied by
// the owner of the state trie; the pipeline only decides when roots
// are computed.
type RootHasher interface {
	// StorageRoot returns the root of base with changes applied.
	StorageRoot(base Reader, changes ChangeSet) types.Hash
	// OrderedRoot returns the root of an ordered list of items.
	OrderedRoot(items [][]byte) types.Hash
}

// FlatRoot hashes the sorted key-value list with blake2b-256. It is a
// stand-in for a trie root with the same determinism but no proofs.
type FlatRoot struct{}

var _ RootHasher = FlatRoot{}

func (FlatRoot) StorageRoot(base Reader, changes ChangeSet) types.Hash {
	pending := make(map[string]*entry, len(changes))
	for _, c := range changes {
		pending[string(c.Key)] = &entry{value: c.Value, deleted: c.Deleted}
	}
	h, _ := blake2b.New256(nil)
	var n [4]byte
	for _, kv := range merged(base, nil, pending) {
		binary.LittleEndian.PutUint32(n[:], uint32(len(kv.Key)))
		h.Write(n[:])
		h.Write(kv.Key)
		binary.LittleEndian.PutUint32(n[:], uint32(len(kv.Value)))
		h.Write(n[:])
		h.Write(kv.Value)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func (FlatRoot) OrderedRoot(items [][]byte) types.Hash {
	h, _ := blake2b.New256(nil)
	var n [4]byte
	for i, it := range items {
		binary.LittleEndian.PutUint32(n[:], uint32(i))
		h.Write(n[:])
		binary.LittleEndian.PutUint32(n[:], uint32(len(it)))
		h.Write(n[:])
		h.Write(it)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
