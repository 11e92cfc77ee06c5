package types

import "github.com/blockberries/rtcore/hashing"

// ConsensusEngineID names the engine a digest item belongs to.
type ConsensusEngineID [4]byte

var (
	BabeEngineID    = ConsensusEngineID{'B', 'A', 'B', 'E'}
	GrandpaEngineID = ConsensusEngineID{'F', 'R', 'N', 'K'}
)

// DigestKind discriminates DigestItem.
type DigestKind uint8

const (
	DigestOther DigestKind = iota
	DigestPreRuntime
	DigestConsensus
	DigestSeal
)

// DigestItem is one header log entry. The runtime passes engine items
// through without interpreting them, except for the ones its own
// consensus modules read or emit.
type DigestItem struct {
	Kind   DigestKind        `cramberry:"1"`
	Engine ConsensusEngineID `cramberry:"2"`
	Data   []byte            `cramberry:"3"`
}

// Digest is the ordered header log.
type Digest struct {
	Logs []DigestItem `cramberry:"1"`
}

// Push appends an item.
func (d *Digest) Push(item DigestItem) { d.Logs = append(d.Logs, item) }

// PreRuntime returns the data of the first pre-runtime item of engine.
func (d Digest) PreRuntime(engine ConsensusEngineID) ([]byte, bool) {
	for _, it := range d.Logs {
		if it.Kind == DigestPreRuntime && it.Engine == engine {
			return it.Data, true
		}
	}
	return nil, false
}

// WithoutSeals returns a copy of d with every seal item removed.
func (d Digest) WithoutSeals() Digest {
	var out Digest
	for _, it := range d.Logs {
		if it.Kind != DigestSeal {
			out.Logs = append(out.Logs, it)
		}
	}
	return out
}

// Header is a block header.
type Header struct {
	ParentHash     Hash        `cramberry:"1"`
	Number         BlockNumber `cramberry:"2"`
	StateRoot      Hash        `cramberry:"3"`
	ExtrinsicsRoot Hash        `cramberry:"4"`
	Digest         Digest      `cramberry:"5"`
}

// Hash returns blake2b-256 of the encoded header.
func (h *Header) Hash() Hash { return hashing.Blake2b256(MustEncode(h)) }

// Block is a header plus its ordered extrinsics.
type Block struct {
	Header     Header      `cramberry:"1"`
	Extrinsics []Extrinsic `cramberry:"2"`
}

// EncodedExtrinsics returns the encoding of every extrinsic, in order.
func (b *Block) EncodedExtrinsics() [][]byte {
	out := make([][]byte, len(b.Extrinsics))
	for i := range b.Extrinsics {
		out[i] = b.Extrinsics[i].Encode()
	}
	return out
}
