package frame

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/rtcore/types"
)

func TestBlockWeightLimits(t *testing.T) {
	w := NewBlockWeights(10, 1_000, 5, types.PercentOf(75), DBWeight{Read: 2, Write: 3})

	max, limited := w.MaxTotal(types.Normal)
	require.True(t, limited)
	require.Equal(t, types.Weight(750), max)

	max, limited = w.MaxTotal(types.Operational)
	require.True(t, limited)
	require.Equal(t, types.Weight(1_000), max)

	_, limited = w.MaxTotal(types.Mandatory)
	require.False(t, limited)

	// 65% of the block, less the per-extrinsic base.
	max, _ = w.MaxExtrinsicFor(types.Normal)
	require.Equal(t, types.Weight(645), max)
	max, _ = w.MaxExtrinsicFor(types.Operational)
	require.Equal(t, types.Weight(985), max)

	require.Equal(t, types.Weight(2*4+3*5), w.DB.ReadsWrites(4, 5))
}

func TestBlockLengthLimits(t *testing.T) {
	l := BlockLength{Max: 1_000, NormalRatio: types.PercentOf(75)}
	require.Equal(t, uint32(750), l.MaxFor(types.Normal))
	require.Equal(t, uint32(1_000), l.MaxFor(types.Operational))
}

func TestConsumedWeight(t *testing.T) {
	var c ConsumedWeight
	c.Add(types.Normal, 10)
	c.Add(types.Operational, 20)
	c.Add(types.Mandatory, types.MaxWeight)
	require.Equal(t, types.MaxWeight, c.Total())

	c.Sub(types.Mandatory, types.MaxWeight)
	c.Sub(types.Normal, 100)
	require.Zero(t, c.Get(types.Normal))
	require.Equal(t, types.Weight(20), c.Total())
}
