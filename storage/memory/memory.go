// Package memory is an in-memory storage.Backend that keeps the
// post-state of every committed block as a copy-on-write B-tree.
package memory

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

const degree = 32

type kv struct {
	key, value []byte
}

func less(a, b kv) bool { return bytes.Compare(a.key, b.key) < 0 }

// Store holds forks: any retained block can be built upon.
type Store struct {
	mu     sync.Mutex
	retain int
	states map[types.Hash]*btree.BTreeG[kv]
	// order lists retained hashes oldest first.
	order []types.Hash
}

var _ storage.Backend = (*Store)(nil)

// New returns an empty store that keeps every committed state.
func New() *Store { return NewRetaining(0) }

// NewRetaining returns an empty store that keeps the states of the
// last retain committed blocks, across all forks. A retain of zero or
// less keeps everything. Snapshots taken before a state is dropped stay
// readable.
func NewRetaining(retain int) *Store {
	return &Store{retain: retain, states: make(map[types.Hash]*btree.BTreeG[kv])}
}

// At returns the post-state of hash.
func (s *Store) At(hash types.Hash) (storage.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.states[hash]
	if !ok {
		return nil, storage.ErrUnknownBlock
	}
	return snapshot{tree: t, hash: hash}, nil
}

// Commit stores parent's state plus changes as the state of hash.
// Recommitting a known hash replaces its state.
func (s *Store) Commit(parent, hash types.Hash, changes storage.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *btree.BTreeG[kv]
	if parent.IsZero() {
		next = btree.NewG(degree, less)
	} else {
		base, ok := s.states[parent]
		if !ok {
			return storage.ErrUnknownBlock
		}
		// Clone resets the copy-on-write context of base, so it runs
		// under the lock; published trees are never written again.
		next = base.Clone()
	}
	for _, c := range changes {
		if c.Deleted {
			next.Delete(kv{key: c.Key})
		} else {
			next.ReplaceOrInsert(kv{
				key:   append([]byte(nil), c.Key...),
				value: append([]byte(nil), c.Value...),
			})
		}
	}
	if _, ok := s.states[hash]; !ok {
		s.order = append(s.order, hash)
	}
	s.states[hash] = next
	for s.retain > 0 && len(s.order) > s.retain {
		delete(s.states, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// Prune drops the state of hash.
func (s *Store) Prune(hash types.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[hash]; !ok {
		return
	}
	delete(s.states, hash)
	for i, h := range s.order {
		if h == hash {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of blocks with state.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

func (s *Store) Close() error { return nil }

type snapshot struct {
	tree *btree.BTreeG[kv]
	hash types.Hash
}

func (s snapshot) Get(key []byte) ([]byte, bool) {
	it, ok := s.tree.Get(kv{key: key})
	if !ok {
		return nil, false
	}
	return it.value, true
}

func (s snapshot) Iterate(prefix []byte, fn func(key, value []byte) bool) {
	s.tree.AscendGreaterOrEqual(kv{key: prefix}, func(it kv) bool {
		if !bytes.HasPrefix(it.key, prefix) {
			return false
		}
		return fn(it.key, it.value)
	})
}

func (s snapshot) Block() types.Hash { return s.hash }

func (snapshot) Err() error { return nil }

func (snapshot) Release() {}
