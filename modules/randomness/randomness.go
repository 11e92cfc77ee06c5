// Package randomness keeps a ring of recent parent hashes and derives
// low-influence randomness from it.
//
// The output is predictable a few blocks ahead and biasable by block
// authors. It suits tie-breaking and seeding, not security decisions.
package randomness

import (
	"encoding/binary"

	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/hashing"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

const ModuleName = "RandomnessCollectiveFlip"

// MaterialLen is the number of parent hashes kept.
const MaterialLen = 81

var randomMaterial = storage.NewValue[[]types.Hash](ModuleName, "RandomMaterial")

type Config struct {
	Chain frame.ChainInfo
}

type Module struct {
	frame.Base
	chain frame.ChainInfo
}

var _ frame.RandomnessSource = (*Module)(nil)

func New(cfg Config) *Module {
	return &Module{
		Base: frame.NewBase(ModuleName, frame.Spec{
			Constants: []frame.Constant{frame.NewConstant("RandomMaterialLength", uint32(MaterialLen))},
			Storage:   []frame.Item{randomMaterial},
		}),
		chain: cfg.Chain,
	}
}

// OnInitialize stores the parent hash in the ring slot of block n-1.
func (m *Module) OnInitialize(ctx *frame.Context, n types.BlockNumber) types.Weight {
	parent := m.chain.ParentHash(ctx.Store)
	idx := int((uint64(n) + MaterialLen - 1) % MaterialLen)
	randomMaterial.Mutate(ctx.Store, func(mat *[]types.Hash) {
		if len(*mat) < MaterialLen {
			*mat = append(*mat, parent)
		} else {
			(*mat)[idx] = parent
		}
	})
	return 0
}

// Random folds the ring into one hash: the XOR of
// blake2b(i ++ subject ++ material[i]) over all entries.
func (m *Module) Random(r storage.Reader, subject []byte) types.Hash {
	var out types.Hash
	var i [4]byte
	for n, h := range randomMaterial.Load(r) {
		binary.LittleEndian.PutUint32(i[:], uint32(n))
		d := hashing.Blake2b256(i[:], subject, h[:])
		for j := range out {
			out[j] ^= d[j]
		}
	}
	return out
}

// Material returns the current ring.
func (m *Module) Material(r storage.Reader) []types.Hash { return randomMaterial.Load(r) }
