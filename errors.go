package rtcore

import (
	"errors"
	"fmt"

	"github.com/blockberries/rtcore/types"
)

// ErrUnsupported is returned for optional capabilities the runtime
// does not provide.
var ErrUnsupported = errors.New("rtcore: unsupported")

// BlockError signals that a block cannot be imported: it is invalid
// on its parent state and every honest node will reject it.
//
// When the importer receives a BlockError from ExecuteBlock it must
// discard the block and not commit any of its state.
type BlockError struct {
	Number types.BlockNumber
	Reason string
	Err    error
}

func (e *BlockError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid block #%d: %s: %v", e.Number, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid block #%d: %s", e.Number, e.Reason)
}

func (e *BlockError) Unwrap() error { return e.Err }

// NewBlockError creates a new BlockError.
func NewBlockError(number types.BlockNumber, reason string, err error) *BlockError {
	return &BlockError{Number: number, Reason: reason, Err: err}
}

// IsBlockError checks whether an error is a BlockError and returns it.
func IsBlockError(err error) (*BlockError, bool) {
	var b *BlockError
	if errors.As(err, &b) {
		return b, true
	}
	return nil, false
}
