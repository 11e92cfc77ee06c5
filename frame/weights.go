package frame

import "github.com/blockberries/rtcore/types"

// DBWeight is the cost of one storage read and one write.
type DBWeight struct {
	Read  types.Weight
	Write types.Weight
}

// ReadsWrites returns the cost of r reads and w writes.
func (d DBWeight) ReadsWrites(r, w uint64) types.Weight {
	return d.Read.SaturatingMul(r).SaturatingAdd(d.Write.SaturatingMul(w))
}

// BlockWeights bounds the weight of a block.
type BlockWeights struct {
	// BaseBlock is charged once per block as Mandatory.
	BaseBlock types.Weight
	// MaxBlock is the total weight of a block.
	MaxBlock types.Weight
	// ExtrinsicBase is charged on top of every extrinsic.
	ExtrinsicBase types.Weight
	// NormalRatio is the share of MaxBlock available to Normal calls.
	NormalRatio types.Perbill
	// MaxExtrinsic caps a single Normal extrinsic in the pool.
	MaxExtrinsic types.Weight
	DB           DBWeight
}

// averageOnInitialize is the share of the Normal budget kept free for
// on_initialize hooks when sizing single extrinsics.
var averageOnInitialize = types.PercentOf(10)

// NewBlockWeights derives the per-extrinsic limit from max and the
// Normal ratio.
func NewBlockWeights(base, max, extrinsicBase types.Weight, normal types.Perbill, db DBWeight) BlockWeights {
	return BlockWeights{
		BaseBlock:     base,
		MaxBlock:      max,
		ExtrinsicBase: extrinsicBase,
		NormalRatio:   normal,
		MaxExtrinsic:  types.Weight(normal.SaturatingSub(averageOnInitialize).Mul(uint64(max))).SaturatingSub(extrinsicBase),
		DB:            db,
	}
}

// DefaultBlockWeights is two seconds of compute at 1e12 weight per
// second, 75% of it for Normal calls.
func DefaultBlockWeights() BlockWeights {
	return NewBlockWeights(
		1_000_000_000,
		2_000_000_000_000,
		100_000_000,
		types.PercentOf(75),
		DBWeight{Read: 60_000_000, Write: 200_000_000},
	)
}

// MaxTotal returns the block weight limit of class. Mandatory calls
// are unlimited.
func (w BlockWeights) MaxTotal(class types.DispatchClass) (types.Weight, bool) {
	switch class {
	case types.Normal:
		return types.Weight(w.NormalRatio.Mul(uint64(w.MaxBlock))), true
	case types.Operational:
		return w.MaxBlock, true
	default:
		return 0, false
	}
}

// MaxExtrinsicFor returns the single-extrinsic limit of class.
func (w BlockWeights) MaxExtrinsicFor(class types.DispatchClass) (types.Weight, bool) {
	switch class {
	case types.Normal:
		return w.MaxExtrinsic, true
	case types.Operational:
		return w.MaxBlock.SaturatingSub(w.BaseBlock).SaturatingSub(w.ExtrinsicBase), true
	default:
		return 0, false
	}
}

// BlockLength bounds the encoded size of a block's extrinsics.
type BlockLength struct {
	Max         uint32
	NormalRatio types.Perbill
}

// DefaultBlockLength is 5 MiB, 75% of it for Normal calls.
func DefaultBlockLength() BlockLength {
	return BlockLength{Max: 5 * 1024 * 1024, NormalRatio: types.PercentOf(75)}
}

// MaxFor returns the length limit of class.
func (l BlockLength) MaxFor(class types.DispatchClass) uint32 {
	if class == types.Normal {
		return uint32(l.NormalRatio.Mul(uint64(l.Max)))
	}
	return l.Max
}

// ConsumedWeight is the weight used in the current block, per class.
type ConsumedWeight struct {
	Normal      types.Weight `cramberry:"1"`
	Operational types.Weight `cramberry:"2"`
	Mandatory   types.Weight `cramberry:"3"`
}

func (c *ConsumedWeight) slot(class types.DispatchClass) *types.Weight {
	switch class {
	case types.Normal:
		return &c.Normal
	case types.Operational:
		return &c.Operational
	default:
		return &c.Mandatory
	}
}

// Get returns the weight used by class.
func (c ConsumedWeight) Get(class types.DispatchClass) types.Weight { return *c.slot(class) }

// Add adds w to class.
func (c *ConsumedWeight) Add(class types.DispatchClass, w types.Weight) {
	s := c.slot(class)
	*s = s.SaturatingAdd(w)
}

// Sub removes w from class.
func (c *ConsumedWeight) Sub(class types.DispatchClass, w types.Weight) {
	s := c.slot(class)
	*s = s.SaturatingSub(w)
}

// Total returns the weight used by all classes.
func (c ConsumedWeight) Total() types.Weight {
	return c.Normal.SaturatingAdd(c.Operational).SaturatingAdd(c.Mandatory)
}
