package types

import "fmt"

// DispatchClass groups calls for block weight accounting.
type DispatchClass uint8

const (
	// Normal calls are limited to the available block ratio.
	Normal DispatchClass = iota
	// Operational calls may use the whole block.
	Operational
	// Mandatory calls (inherents) are always included.
	Mandatory
)

func (c DispatchClass) String() string {
	switch c {
	case Normal:
		return "normal"
	case Operational:
		return "operational"
	case Mandatory:
		return "mandatory"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Pays says whether a call is charged.
type Pays uint8

const (
	PaysYes Pays = iota
	PaysNo
)

// DispatchInfo is the pre-dispatch estimate of a call.
type DispatchInfo struct {
	Weight  Weight        `cramberry:"1"`
	Class   DispatchClass `cramberry:"2"`
	PaysFee Pays          `cramberry:"3"`
}

// PostDispatchInfo is what a call reports after running. A nil
// ActualWeight means the estimate was exact.
type PostDispatchInfo struct {
	ActualWeight *Weight `cramberry:"1"`
	PaysFee      Pays    `cramberry:"2"`
}

// ActualWeightOf returns the post-dispatch weight. It never exceeds
// the estimate.
func (p PostDispatchInfo) ActualWeightOf(info DispatchInfo) Weight {
	if p.ActualWeight != nil && *p.ActualWeight < info.Weight {
		return *p.ActualWeight
	}
	return info.Weight
}

// Unspent returns how much of the estimate was not used.
func (p PostDispatchInfo) Unspent(info DispatchInfo) Weight {
	return info.Weight.SaturatingSub(p.ActualWeightOf(info))
}

// WithWeight returns post-dispatch info reporting w.
func WithWeight(w Weight) PostDispatchInfo {
	return PostDispatchInfo{ActualWeight: &w}
}

// DispatchErrorKind discriminates DispatchError.
type DispatchErrorKind uint8

const (
	DispatchOther DispatchErrorKind = iota
	DispatchCannotLookup
	DispatchBadOrigin
	DispatchModule
)

// DispatchError is the result of a call that ran and failed. The
// extrinsic carrying it is still included in the block.
type DispatchError struct {
	Kind    DispatchErrorKind `cramberry:"1"`
	Module  uint8             `cramberry:"2"`
	Index   uint8             `cramberry:"3"`
	Message string            `cramberry:"4"`
}

func (e *DispatchError) Error() string {
	switch e.Kind {
	case DispatchBadOrigin:
		return "dispatch: bad origin"
	case DispatchCannotLookup:
		return "dispatch: cannot lookup"
	case DispatchModule:
		if e.Message != "" {
			return fmt.Sprintf("dispatch: module %d error %d (%s)", e.Module, e.Index, e.Message)
		}
		return fmt.Sprintf("dispatch: module %d error %d", e.Module, e.Index)
	default:
		return "dispatch: " + e.Message
	}
}

// ApplyExtrinsicResult is the outcome of applying one extrinsic. A
// non-nil Validity means the extrinsic was rejected and left no trace.
// Otherwise it was applied, and Dispatch reports whether the call
// itself failed.
type ApplyExtrinsicResult struct {
	Validity *TransactionValidityError `cramberry:"1"`
	Dispatch *DispatchError            `cramberry:"2"`
}

// Applied reports whether the extrinsic was included.
func (r ApplyExtrinsicResult) Applied() bool { return r.Validity == nil }

// Succeeded reports whether the extrinsic was included and its call
// succeeded.
func (r ApplyExtrinsicResult) Succeeded() bool {
	return r.Validity == nil && r.Dispatch == nil
}
