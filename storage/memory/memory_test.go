package memory

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

func hashOf(b byte) types.Hash { return types.Hash{b} }

func TestCommitAndFork(t *testing.T) {
	s := New()
	require.NoError(t, s.Commit(types.Hash{}, hashOf(1), storage.ChangeSet{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}))
	require.NoError(t, s.Commit(hashOf(1), hashOf(2), storage.ChangeSet{
		{Key: []byte("a"), Deleted: true},
		{Key: []byte("c"), Value: []byte("3")},
	}))
	require.NoError(t, s.Commit(hashOf(1), hashOf(3), storage.ChangeSet{
		{Key: []byte("b"), Value: []byte("fork")},
	}))

	g, err := s.At(hashOf(1))
	require.NoError(t, err)
	v, ok := g.Get([]byte("a"))
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	b2, err := s.At(hashOf(2))
	require.NoError(t, err)
	_, ok = b2.Get([]byte("a"))
	require.False(t, ok)
	v, _ = b2.Get([]byte("b"))
	require.Equal(t, []byte("2"), v)

	b3, err := s.At(hashOf(3))
	require.NoError(t, err)
	v, _ = b3.Get([]byte("b"))
	require.Equal(t, []byte("fork"), v)
	_, ok = b3.Get([]byte("c"))
	require.False(t, ok)
	require.Equal(t, hashOf(3), b3.Block())
}

func TestUnknownParent(t *testing.T) {
	s := New()
	require.ErrorIs(t, s.Commit(hashOf(9), hashOf(1), nil), storage.ErrUnknownBlock)
	_, err := s.At(hashOf(1))
	require.ErrorIs(t, err, storage.ErrUnknownBlock)
}

func TestIteratePrefix(t *testing.T) {
	s := New()
	require.NoError(t, s.Commit(types.Hash{}, hashOf(1), storage.ChangeSet{
		{Key: []byte("pa"), Value: []byte("1")},
		{Key: []byte("pb"), Value: []byte("2")},
		{Key: []byte("q"), Value: []byte("3")},
		{Key: []byte("o"), Value: []byte("0")},
	}))
	snap, err := s.At(hashOf(1))
	require.NoError(t, err)
	var keys []string
	snap.Iterate([]byte("p"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	require.Equal(t, []string{"pa", "pb"}, keys)
}

func TestPrune(t *testing.T) {
	s := New()
	require.NoError(t, s.Commit(types.Hash{}, hashOf(1), nil))
	require.Equal(t, 1, s.Len())
	s.Prune(hashOf(1))
	require.Equal(t, 0, s.Len())
}

func TestRetainWindow(t *testing.T) {
	s := NewRetaining(3)
	require.NoError(t, s.Commit(types.Hash{}, hashOf(1), storage.ChangeSet{{Key: []byte("k"), Value: []byte("1")}}))
	held, err := s.At(hashOf(1))
	require.NoError(t, err)

	for i := byte(2); i <= 5; i++ {
		require.NoError(t, s.Commit(hashOf(i-1), hashOf(i), storage.ChangeSet{{Key: []byte("k"), Value: []byte{'0' + i}}}))
	}
	require.Equal(t, 3, s.Len())
	for _, gone := range []byte{1, 2} {
		_, err := s.At(hashOf(gone))
		require.ErrorIs(t, err, storage.ErrUnknownBlock)
	}
	require.ErrorIs(t, s.Commit(hashOf(2), hashOf(9), nil), storage.ErrUnknownBlock)

	// Forks share the window and recommits do not count twice.
	require.NoError(t, s.Commit(hashOf(4), hashOf(6), nil))
	require.NoError(t, s.Commit(hashOf(4), hashOf(6), nil))
	require.Equal(t, 3, s.Len())
	_, err = s.At(hashOf(3))
	require.ErrorIs(t, err, storage.ErrUnknownBlock)
	for _, kept := range []byte{4, 5, 6} {
		_, err := s.At(hashOf(kept))
		require.NoError(t, err)
	}

	v, ok := held.Get([]byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)
	require.NoError(t, held.Err())
}

func TestPruneLeavesWindow(t *testing.T) {
	s := NewRetaining(2)
	require.NoError(t, s.Commit(types.Hash{}, hashOf(1), nil))
	require.NoError(t, s.Commit(hashOf(1), hashOf(2), nil))
	s.Prune(hashOf(1))
	require.NoError(t, s.Commit(hashOf(2), hashOf(3), nil))
	require.Equal(t, 2, s.Len())
	_, err := s.At(hashOf(2))
	require.NoError(t, err)
}
