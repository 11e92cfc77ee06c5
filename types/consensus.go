package types

// AuthorityID is an authority's public key.
type AuthorityID [32]byte

// Authority is a weighted authority.
type Authority struct {
	ID     AuthorityID `cramberry:"1"`
	Weight uint64      `cramberry:"2"`
}

// AuthoritySet is the finality authority list with its set id. The id
// increases by one every time the list changes.
type AuthoritySet struct {
	Authorities []Authority `cramberry:"1"`
	SetID       uint64      `cramberry:"2"`
}

// AllowedSlots says which slot claims block production accepts.
type AllowedSlots uint8

const (
	PrimarySlots AllowedSlots = iota
	PrimaryAndSecondaryPlainSlots
	PrimaryAndSecondaryVRFSlots
)

// EpochConfiguration is the BABE configuration derived from state.
// The primary slot probability is C1/C2.
type EpochConfiguration struct {
	SlotDuration uint64       `cramberry:"1"`
	EpochLength  uint64       `cramberry:"2"`
	C1           uint64       `cramberry:"3"`
	C2           uint64       `cramberry:"4"`
	Authorities  []Authority  `cramberry:"5"`
	Randomness   Hash         `cramberry:"6"`
	AllowedSlots AllowedSlots `cramberry:"7"`
}

// BabePreDigest is the slot claim a block author puts in the header as
// a pre-runtime digest item.
type BabePreDigest struct {
	AuthorityIndex uint32 `cramberry:"1"`
	Slot           Slot   `cramberry:"2"`
	Primary        bool   `cramberry:"3"`
	VRFOutput      Hash   `cramberry:"4"`
}

// NextEpochDescriptor announces the authorities and randomness of the
// next epoch.
type NextEpochDescriptor struct {
	Authorities []Authority `cramberry:"1"`
	Randomness  Hash        `cramberry:"2"`
}

// ScheduledChange announces a pending finality authority change.
type ScheduledChange struct {
	NextAuthorities []Authority `cramberry:"1"`
	Delay           BlockNumber `cramberry:"2"`
}

// ConsensusLogKind discriminates ConsensusLog.
type ConsensusLogKind uint8

const (
	LogNextEpochData ConsensusLogKind = iota + 1
	LogScheduledChange
	LogForcedChange
	LogOnDisabled
	LogPause
	LogResume
)

// ConsensusLog is the payload of a consensus digest item emitted by
// the babe and grandpa modules.
type ConsensusLog struct {
	Kind      ConsensusLogKind     `cramberry:"1"`
	NextEpoch *NextEpochDescriptor `cramberry:"2"`
	Change    *ScheduledChange     `cramberry:"3"`
	Index     uint64               `cramberry:"4"`
	Delay     BlockNumber          `cramberry:"5"`
}

// EquivocationProof is an opaque proof of a double vote or double
// block by one authority.
type EquivocationProof []byte

// KeyOwnershipProof is an opaque proof that a key belonged to an
// authority set member.
type KeyOwnershipProof []byte
