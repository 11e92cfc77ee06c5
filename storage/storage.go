// Package storage is the flat key-value state model of the runtime.
//
// Committed state is read through immutable Snapshots handed out by a
// Backend. Block execution and queries write into a private Overlay
// over a snapshot; the overlay's ChangeSet is committed by the backend
// only after a block has been finalized.
package storage

import (
	"bytes"
	"errors"
	"sort"

	"github.com/blockberries/rtcore/types"
)

var (
	// ErrUnknownBlock is returned when no state is held for a block.
	ErrUnknownBlock = errors.New("storage: unknown block")
	// ErrNotHead is returned by linear backends when a commit does not
	// extend the current head.
	ErrNotHead = errors.New("storage: parent is not the head")
	// ErrNoTransaction is returned when committing or rolling back an
	// overlay with no open transaction.
	ErrNoTransaction = errors.New("storage: no open transaction")
)

// Reader reads state.
type Reader interface {
	// Get returns the value stored under key.
	Get(key []byte) ([]byte, bool)
	// Iterate calls fn for every key with the given prefix, in
	// ascending key order, until fn returns false.
	Iterate(prefix []byte, fn func(key, value []byte) bool)
}

// Store reads and writes state.
type Store interface {
	Reader
	Set(key, value []byte)
	Delete(key []byte)
}

// Snapshot is the immutable post-state of one block.
type Snapshot interface {
	Reader
	// Block returns the hash of the block this is the post-state of.
	Block() types.Hash
	// Err returns the first read failure of a persistent backend. A
	// failed read reports the key as missing, so callers check Err
	// before trusting what they computed.
	Err() error
	// Release gives up the snapshot. It may be called more than once.
	// Reads after Release fail.
	Release()
}

// Backend holds committed state per block.
type Backend interface {
	// At returns the post-state of block hash.
	At(hash types.Hash) (Snapshot, error)
	// Commit stores the post-state of hash as parent's state plus
	// changes. The zero parent hash denotes the empty pre-genesis
	// state.
	Commit(parent, hash types.Hash, changes ChangeSet) error
	Close() error
}

// Change is one key write. Deleted changes carry no value.
type Change struct {
	Key     []byte `cramberry:"1"`
	Value   []byte `cramberry:"2"`
	Deleted bool   `cramberry:"3"`
}

// ChangeSet is a set of key writes sorted by key.
type ChangeSet []Change

// Apply writes every change into s.
func (cs ChangeSet) Apply(s Store) {
	for _, c := range cs {
		if c.Deleted {
			s.Delete(c.Key)
		} else {
			s.Set(c.Key, c.Value)
		}
	}
}

// empty is the pre-genesis state.
type empty struct{}

func (empty) Get([]byte) ([]byte, bool)              { return nil, false }
func (empty) Iterate([]byte, func(k, v []byte) bool) {}
func (empty) Block() types.Hash                      { return types.Hash{} }
func (empty) Err() error                             { return nil }
func (empty) Release()                               {}

// Empty returns a snapshot of the empty state, the parent of genesis.
func Empty() Snapshot { return empty{} }

// merged returns base overlaid with changes, sorted by key, restricted
// to prefix.
func merged(base Reader, prefix []byte, changes map[string]*entry) []Change {
	view := make(map[string][]byte)
	base.Iterate(prefix, func(k, v []byte) bool {
		view[string(k)] = v
		return true
	})
	for k, e := range changes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if e.deleted {
			delete(view, k)
		} else {
			view[k] = e.value
		}
	}
	out := make([]Change, 0, len(view))
	for k, v := range view {
		out = append(out, Change{Key: []byte(k), Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out
}
