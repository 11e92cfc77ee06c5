// Package badger is a persistent storage.Backend on BadgerDB.
//
// Badger keeps one linear history, so only the head may be extended.
// The most recent committed states stay readable through pinned
// read-only transactions.
package badger

import (
	"errors"
	"fmt"
	"sync"

	bdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

var (
	stateSpace = []byte{'s'}
	headKey    = []byte("m/head")
)

// DefaultRetain is how many recent states stay readable.
const DefaultRetain = 16

// Options configure Open.
type Options struct {
	// Path is the database directory. Empty means in-memory.
	Path string
	// Retain is how many recent states stay readable.
	Retain int
	Logger *zap.Logger
}

// ErrReleased is the read error of a released snapshot.
var ErrReleased = errors.New("badger: snapshot released")

// Store is a badger-backed state store.
type Store struct {
	db     *bdb.DB
	log    *zap.Logger
	retain int

	mu     sync.Mutex
	closed bool
	head   types.Hash
	pinned map[types.Hash]*state
	order  []types.Hash
}

// state is one committed block's read transaction. It is discarded
// once it has left the retain window and no snapshot refers to it.
type state struct {
	txn      *bdb.Txn
	hash     types.Hash
	refs     int
	retained bool
}

var _ storage.Backend = (*Store)(nil)

// Open opens or creates a store.
func Open(opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	bopts := bdb.DefaultOptions(opts.Path).WithLogger(badgerLogger{log.Sugar()})
	if opts.Path == "" {
		bopts = bopts.WithInMemory(true)
	}
	db, err := bdb.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %q: %w", opts.Path, err)
	}
	s := &Store{
		db:     db,
		log:    log,
		retain: opts.Retain,
		pinned: make(map[types.Hash]*state),
	}
	if s.retain <= 0 {
		s.retain = DefaultRetain
	}
	err = db.View(func(txn *bdb.Txn) error {
		item, err := txn.Get(headKey)
		if errors.Is(err, bdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		bz, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		copy(s.head[:], bz)
		return nil
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("badger: read head: %w", err), db.Close())
	}
	if !s.head.IsZero() {
		s.pin(s.head)
		log.Info("reopened state", zap.Stringer("head", s.head))
	}
	return s, nil
}

// Head returns the hash of the last committed block.
func (s *Store) Head() types.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.head
}

// At returns the post-state of hash if it is still retained. The
// state stays readable until the snapshot is released, even after it
// leaves the retain window.
func (s *Store) At(hash types.Hash) (storage.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrUnknownBlock
	}
	st, ok := s.pinned[hash]
	if !ok {
		return nil, storage.ErrUnknownBlock
	}
	st.refs++
	return &snapshot{store: s, st: st}, nil
}

// Commit applies changes on top of the head.
func (s *Store) Commit(parent, hash types.Hash, changes storage.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if parent != s.head {
		return fmt.Errorf("%w: parent %s, head %s", storage.ErrNotHead, parent, s.head)
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, c := range changes {
		key := append(append([]byte(nil), stateSpace...), c.Key...)
		var err error
		if c.Deleted {
			err = wb.Delete(key)
		} else {
			err = wb.Set(key, append([]byte(nil), c.Value...))
		}
		if err != nil {
			return fmt.Errorf("badger: stage %x: %w", c.Key, err)
		}
	}
	if err := wb.Set(append([]byte(nil), headKey...), append([]byte(nil), hash[:]...)); err != nil {
		return fmt.Errorf("badger: stage head: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badger: flush: %w", err)
	}
	s.head = hash
	s.pin(hash)
	s.log.Debug("committed state", zap.Stringer("block", hash), zap.Int("changes", len(changes)))
	return nil
}

// pin opens a read transaction for hash and moves the oldest state
// out of the retain window. Called with mu held.
func (s *Store) pin(hash types.Hash) {
	s.pinned[hash] = &state{txn: s.db.NewTransaction(false), hash: hash, retained: true}
	s.order = append(s.order, hash)
	for len(s.order) > s.retain {
		old := s.order[0]
		s.order = s.order[1:]
		st, ok := s.pinned[old]
		if !ok {
			continue
		}
		delete(s.pinned, old)
		st.retained = false
		if st.refs == 0 {
			st.txn.Discard()
		} else {
			s.log.Debug("state left the retain window while in use",
				zap.Stringer("block", old), zap.Int("refs", st.refs))
		}
	}
}

// release drops one reference to st. Called with mu held.
func (s *Store) release(st *state) {
	st.refs--
	if st.refs == 0 && !st.retained && !s.closed {
		st.txn.Discard()
	}
}

// Pinned returns how many states hold an open read transaction.
func (s *Store) Pinned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pinned)
}

// Close discards retained states and closes the database. Snapshots
// still held fail their next read.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, st := range s.pinned {
		st.retained = false
		if st.refs == 0 {
			st.txn.Discard()
		}
		delete(s.pinned, h)
	}
	s.order = nil
	s.closed = true
	return s.db.Close()
}

// snapshot is one caller's handle on a state. Reads are serialized
// because a badger transaction is not safe for concurrent use.
type snapshot struct {
	store *Store
	st    *state

	mu       sync.Mutex
	released bool
	err      error
}

func (s *snapshot) fail(err error) {
	if s.err == nil {
		s.err = err
		s.store.log.Error("state read failed", zap.Stringer("block", s.st.hash), zap.Error(err))
	}
}

func (s *snapshot) Get(key []byte) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		s.fail(ErrReleased)
		return nil, false
	}
	item, err := s.st.txn.Get(append(append([]byte(nil), stateSpace...), key...))
	if errors.Is(err, bdb.ErrKeyNotFound) {
		return nil, false
	}
	if err != nil {
		s.fail(fmt.Errorf("badger: get %x: %w", key, err))
		return nil, false
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		s.fail(fmt.Errorf("badger: read %x: %w", key, err))
		return nil, false
	}
	return v, true
}

func (s *snapshot) Iterate(prefix []byte, fn func(key, value []byte) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		s.fail(ErrReleased)
		return
	}
	full := append(append([]byte(nil), stateSpace...), prefix...)
	opts := bdb.DefaultIteratorOptions
	opts.Prefix = full
	it := s.st.txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(full); it.ValidForPrefix(full); it.Next() {
		item := it.Item()
		v, err := item.ValueCopy(nil)
		if err != nil {
			s.fail(fmt.Errorf("badger: read %x: %w", item.Key(), err))
			return
		}
		if !fn(item.KeyCopy(nil)[len(stateSpace):], v) {
			return
		}
	}
}

func (s *snapshot) Block() types.Hash { return s.st.hash }

func (s *snapshot) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Release gives up this handle. The state is discarded when it has
// left the retain window and no other handle refers to it.
func (s *snapshot) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	s.store.mu.Lock()
	s.store.release(s.st)
	s.store.mu.Unlock()
}

// badgerLogger routes badger's logs through zap.
type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warnf(format, args...)
}
