package types

import (
	"errors"
	"fmt"
	"math"
)

// TransactionSource says where a transaction being validated comes
// from.
type TransactionSource uint8

const (
	// SourceInBlock is a transaction already included in a block.
	SourceInBlock TransactionSource = iota
	// SourceLocal is a transaction authored by this node.
	SourceLocal
	// SourceExternal is a transaction received from the network.
	SourceExternal
)

func (s TransactionSource) String() string {
	switch s {
	case SourceInBlock:
		return "in-block"
	case SourceLocal:
		return "local"
	case SourceExternal:
		return "external"
	default:
		return fmt.Sprintf("source(%d)", uint8(s))
	}
}

// InvalidTransaction is the reason a transaction is permanently invalid
// at the checked state.
type InvalidTransaction uint8

const (
	InvalidCall InvalidTransaction = iota
	InvalidPayment
	InvalidFuture
	InvalidStale
	InvalidBadProof
	InvalidAncientBirthBlock
	InvalidExhaustsResources
	InvalidCustom
	InvalidBadMandatory
	InvalidMandatoryDispatch
	InvalidMalformed
	InvalidWrongChain
	InvalidOutdated
)

var invalidNames = [...]string{
	"call", "payment", "future", "stale", "bad proof",
	"ancient birth block", "exhausts resources", "custom",
	"bad mandatory", "mandatory dispatch", "malformed", "wrong chain",
	"outdated",
}

func (k InvalidTransaction) String() string {
	if int(k) < len(invalidNames) {
		return invalidNames[k]
	}
	return fmt.Sprintf("invalid(%d)", uint8(k))
}

// UnknownTransaction is the reason validity could not be determined.
type UnknownTransaction uint8

const (
	UnknownCannotLookup UnknownTransaction = iota
	UnknownNoUnsignedValidator
	UnknownCustom
)

func (k UnknownTransaction) String() string {
	switch k {
	case UnknownCannotLookup:
		return "cannot lookup"
	case UnknownNoUnsignedValidator:
		return "no unsigned validator"
	case UnknownCustom:
		return "custom"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// TransactionValidityError is either Invalid or Unknown. It is returned
// as an error by the validity chain.
type TransactionValidityError struct {
	Unknown bool  `cramberry:"1"`
	Reason  uint8 `cramberry:"2"`
	Custom  uint8 `cramberry:"3"`
}

// Invalid returns an Invalid validity error of kind.
func Invalid(kind InvalidTransaction) *TransactionValidityError {
	return &TransactionValidityError{Reason: uint8(kind)}
}

// InvalidCustomCode returns Invalid(Custom(code)).
func InvalidCustomCode(code uint8) *TransactionValidityError {
	return &TransactionValidityError{Reason: uint8(InvalidCustom), Custom: code}
}

// Unknown returns an Unknown validity error of kind.
func Unknown(kind UnknownTransaction) *TransactionValidityError {
	return &TransactionValidityError{Unknown: true, Reason: uint8(kind)}
}

// InvalidKind returns the Invalid reason, or false for Unknown errors.
func (e *TransactionValidityError) InvalidKind() (InvalidTransaction, bool) {
	if e.Unknown {
		return 0, false
	}
	return InvalidTransaction(e.Reason), true
}

// UnknownKind returns the Unknown reason, or false for Invalid errors.
func (e *TransactionValidityError) UnknownKind() (UnknownTransaction, bool) {
	if !e.Unknown {
		return 0, false
	}
	return UnknownTransaction(e.Reason), true
}

// ExhaustsResources reports whether the error is a budget failure.
func (e *TransactionValidityError) ExhaustsResources() bool {
	k, ok := e.InvalidKind()
	return ok && k == InvalidExhaustsResources
}

func (e *TransactionValidityError) Error() string {
	if e.Unknown {
		return "unknown transaction validity: " + UnknownTransaction(e.Reason).String()
	}
	if InvalidTransaction(e.Reason) == InvalidCustom {
		return fmt.Sprintf("invalid transaction: custom %d", e.Custom)
	}
	return "invalid transaction: " + InvalidTransaction(e.Reason).String()
}

// AsValidityError extracts a TransactionValidityError from err.
func AsValidityError(err error) (*TransactionValidityError, bool) {
	var v *TransactionValidityError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// IsInvalid reports whether err is Invalid(kind).
func IsInvalid(err error, kind InvalidTransaction) bool {
	v, ok := AsValidityError(err)
	if !ok {
		return false
	}
	k, ok := v.InvalidKind()
	return ok && k == kind
}

// IsUnknown reports whether err is Unknown(kind).
func IsUnknown(err error, kind UnknownTransaction) bool {
	v, ok := AsValidityError(err)
	if !ok {
		return false
	}
	k, ok := v.UnknownKind()
	return ok && k == kind
}

// TransactionTag is an opaque dependency tag.
type TransactionTag []byte

// ValidTransaction is the metadata of a valid transaction.
type ValidTransaction struct {
	Priority  uint64   `cramberry:"1"`
	Requires  [][]byte `cramberry:"2"`
	Provides  [][]byte `cramberry:"3"`
	Longevity uint64   `cramberry:"4"`
	Propagate bool     `cramberry:"5"`
}

// DefaultValidTransaction is the neutral element of Combine.
func DefaultValidTransaction() ValidTransaction {
	return ValidTransaction{Longevity: math.MaxUint64, Propagate: true}
}

// Combine merges two validity results: priorities add (saturating),
// tags concatenate, the shorter longevity wins and propagation needs
// both.
func (v ValidTransaction) Combine(o ValidTransaction) ValidTransaction {
	p := v.Priority + o.Priority
	if p < v.Priority {
		p = math.MaxUint64
	}
	out := ValidTransaction{
		Priority:  p,
		Longevity: min(v.Longevity, o.Longevity),
		Propagate: v.Propagate && o.Propagate,
	}
	out.Requires = append(append(out.Requires, v.Requires...), o.Requires...)
	out.Provides = append(append(out.Provides, v.Provides...), o.Provides...)
	return out
}

// TransactionValidity is the answer of the pool validation entry point.
type TransactionValidity struct {
	Valid *ValidTransaction         `cramberry:"1"`
	Error *TransactionValidityError `cramberry:"2"`
}

// IsValid reports whether the transaction was accepted.
func (t TransactionValidity) IsValid() bool { return t.Error == nil && t.Valid != nil }
