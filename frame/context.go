package frame

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// Context is what module code runs against: the runtime it belongs
// to and the overlay it reads and writes.
type Context struct {
	ctx   context.Context
	Store *storage.Overlay
	rt    *Runtime
}

// NewContext returns a module context over store.
func (r *Runtime) NewContext(ctx context.Context, store *storage.Overlay) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{ctx: ctx, Store: store, rt: r}
}

// Context returns the caller's context.
func (c *Context) Context() context.Context { return c.ctx }

func (c *Context) Runtime() *Runtime { return c.rt }

func (c *Context) Logger() *zap.Logger { return c.rt.log }

// DepositEvent encodes payload as event variant of module and appends
// it to the block's event log.
func (c *Context) DepositEvent(module string, variant uint8, payload any) {
	idx, ok := c.rt.index[module]
	if !ok {
		panic(fmt.Sprintf("frame: event from unregistered module %q", module))
	}
	c.rt.system.DepositEvent(c, types.Event{
		Module:  idx,
		Variant: variant,
		Data:    types.MustEncode(payload),
	})
}

// Dispatch runs a nested call.
func (c *Context) Dispatch(call types.Call, origin Origin) (types.PostDispatchInfo, error) {
	return c.rt.Dispatch(c, call, origin)
}

// Transactional runs fn in a storage layer that is discarded when fn
// fails.
func (c *Context) Transactional(fn func() error) error {
	return c.Store.Transactional(fn)
}
