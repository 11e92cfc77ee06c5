package types

// Event is a module event tagged with the emitting module's index.
type Event struct {
	Module  uint8  `cramberry:"1"`
	Variant uint8  `cramberry:"2"`
	Data    []byte `cramberry:"3"`
}

// PhaseKind discriminates Phase.
type PhaseKind uint8

const (
	PhaseApplyExtrinsic PhaseKind = iota
	PhaseFinalization
	PhaseInitialization
)

// Phase is the point of block execution an event was deposited in.
type Phase struct {
	Kind  PhaseKind `cramberry:"1"`
	Index uint32    `cramberry:"2"`
}

// ApplyExtrinsicPhase returns the phase of extrinsic i.
func ApplyExtrinsicPhase(i uint32) Phase {
	return Phase{Kind: PhaseApplyExtrinsic, Index: i}
}

// EventRecord is one entry of the per-block event log.
type EventRecord struct {
	Phase  Phase  `cramberry:"1"`
	Event  Event  `cramberry:"2"`
	Topics []Hash `cramberry:"3"`
}
