package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrBadOrigin is returned when a call is dispatched from an origin
	// it does not accept.
	ErrBadOrigin = errors.New("frame: bad origin")
	// ErrCannotLookup is returned when an address cannot be resolved.
	ErrCannotLookup = errors.New("frame: cannot lookup")
	// ErrUnknownCall is returned for a call whose module or function
	// index is not registered.
	ErrUnknownCall = errors.New("frame: unknown call")
	// ErrUndecodableCall is returned when call arguments fail to decode.
	ErrUndecodableCall = errors.New("frame: undecodable call arguments")
)

// ModuleError is a module-defined dispatch error. Modules declare them
// as package variables; Index is the error's position in the module's
// metadata.
type ModuleError struct {
	Module string
	Index  uint8
	Name   string
}

// NewError declares a module error.
func NewError(module string, index uint8, name string) *ModuleError {
	return &ModuleError{Module: module, Index: index, Name: name}
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Module, e.Name)
}

// Is matches module errors by module and index.
func (e *ModuleError) Is(target error) bool {
	t, ok := target.(*ModuleError)
	return ok && t.Module == e.Module && t.Index == e.Index
}

// IsModuleError reports whether err is or wraps a module error.
func IsModuleError(err error) bool {
	var me *ModuleError
	return errors.As(err, &me)
}
