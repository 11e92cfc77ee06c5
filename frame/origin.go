package frame

import "github.com/blockberries/rtcore/types"

// OriginKind discriminates Origin.
type OriginKind uint8

const (
	OriginRoot OriginKind = iota
	OriginSigned
	OriginNone
)

func (k OriginKind) String() string {
	switch k {
	case OriginRoot:
		return "root"
	case OriginSigned:
		return "signed"
	default:
		return "none"
	}
}

// Origin is who a call is dispatched as.
type Origin struct {
	Kind OriginKind
	Who  types.AccountID
}

// Root is the privileged origin.
func Root() Origin { return Origin{Kind: OriginRoot} }

// Signed is the origin of a signed extrinsic.
func Signed(who types.AccountID) Origin { return Origin{Kind: OriginSigned, Who: who} }

// None is the origin of unsigned extrinsics and inherents.
func None() Origin { return Origin{Kind: OriginNone} }

// EnsureSigned returns the signer or ErrBadOrigin.
func (o Origin) EnsureSigned() (types.AccountID, error) {
	if o.Kind != OriginSigned {
		return types.AccountID{}, ErrBadOrigin
	}
	return o.Who, nil
}

// EnsureRoot returns ErrBadOrigin unless o is Root.
func (o Origin) EnsureRoot() error {
	if o.Kind != OriginRoot {
		return ErrBadOrigin
	}
	return nil
}

// EnsureNone returns ErrBadOrigin unless o is None.
func (o Origin) EnsureNone() error {
	if o.Kind != OriginNone {
		return ErrBadOrigin
	}
	return nil
}

// OriginFilter restricts which origins may dispatch a call. The
// runtime applies it before the call body runs.
type OriginFilter uint8

const (
	AnyOrigin OriginFilter = iota
	RootOrigin
	SignedOrigin
	NoneOrigin
)

// Allows reports whether o passes the filter.
func (f OriginFilter) Allows(o Origin) bool {
	switch f {
	case RootOrigin:
		return o.Kind == OriginRoot
	case SignedOrigin:
		return o.Kind == OriginSigned
	case NoneOrigin:
		return o.Kind == OriginNone
	default:
		return true
	}
}

func (f OriginFilter) String() string {
	switch f {
	case RootOrigin:
		return "root"
	case SignedOrigin:
		return "signed"
	case NoneOrigin:
		return "none"
	default:
		return "any"
	}
}
