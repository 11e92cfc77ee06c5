package badger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

func TestCommitLinear(t *testing.T) {
	s, err := Open(Options{})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Commit(types.Hash{}, types.Hash{1}, storage.ChangeSet{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}))
	require.NoError(t, s.Commit(types.Hash{1}, types.Hash{2}, storage.ChangeSet{
		{Key: []byte("a"), Deleted: true},
	}))
	require.Equal(t, types.Hash{2}, s.Head())

	old, err := s.At(types.Hash{1})
	require.NoError(t, err)
	v, ok := old.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	cur, err := s.At(types.Hash{2})
	require.NoError(t, err)
	_, ok = cur.Get([]byte("a"))
	require.False(t, ok)

	var keys []string
	cur.Iterate(nil, func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	require.Equal(t, []string{"b"}, keys)
}

func TestRejectsFork(t *testing.T) {
	s, err := Open(Options{})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Commit(types.Hash{}, types.Hash{1}, nil))
	require.ErrorIs(t, s.Commit(types.Hash{}, types.Hash{2}, nil), storage.ErrNotHead)
}

func TestRetainWindow(t *testing.T) {
	s, err := Open(Options{Retain: 2})
	require.NoError(t, err)
	defer s.Close()

	parent := types.Hash{}
	for i := byte(1); i <= 3; i++ {
		require.NoError(t, s.Commit(parent, types.Hash{i}, nil))
		parent = types.Hash{i}
	}
	_, err = s.At(types.Hash{1})
	require.ErrorIs(t, err, storage.ErrUnknownBlock)
	_, err = s.At(types.Hash{3})
	require.NoError(t, err)
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Options{Path: dir})
	require.NoError(t, err)
	require.NoError(t, s.Commit(types.Hash{}, types.Hash{7}, storage.ChangeSet{
		{Key: []byte("k"), Value: []byte("v")},
	}))
	require.NoError(t, s.Close())

	s, err = Open(Options{Path: dir})
	require.NoError(t, err)
	defer s.Close()
	require.Equal(t, types.Hash{7}, s.Head())
	snap, err := s.At(types.Hash{7})
	require.NoError(t, err)
	v, ok := snap.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
}

func TestHeldStateOutlivesRetainWindow(t *testing.T) {
	s, err := Open(Options{Retain: 2})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Commit(types.Hash{}, types.Hash{1}, storage.ChangeSet{
		{Key: []byte("k"), Value: []byte("v1")},
	}))
	held, err := s.At(types.Hash{1})
	require.NoError(t, err)

	parent := types.Hash{1}
	for i := byte(2); i <= 4; i++ {
		require.NoError(t, s.Commit(parent, types.Hash{i}, storage.ChangeSet{
			{Key: []byte("k"), Value: []byte{'v', '0' + i}},
		}))
		parent = types.Hash{i}
	}

	// Out of the window for new readers, still readable for the holder.
	_, err = s.At(types.Hash{1})
	require.ErrorIs(t, err, storage.ErrUnknownBlock)
	require.Equal(t, 2, s.Pinned())
	v, ok := held.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)
	var n int
	held.Iterate(nil, func(_, _ []byte) bool { n++; return true })
	require.Equal(t, 1, n)
	require.NoError(t, held.Err())

	held.Release()
	held.Release()
	_, ok = held.Get([]byte("k"))
	require.False(t, ok)
	require.ErrorIs(t, held.Err(), ErrReleased)
}

func TestReleaseKeepsRetainedState(t *testing.T) {
	s, err := Open(Options{Retain: 4})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Commit(types.Hash{}, types.Hash{1}, storage.ChangeSet{
		{Key: []byte("k"), Value: []byte("v")},
	}))
	a, err := s.At(types.Hash{1})
	require.NoError(t, err)
	a.Release()

	b, err := s.At(types.Hash{1})
	require.NoError(t, err)
	defer b.Release()
	v, ok := b.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
	require.NoError(t, b.Err())
}
