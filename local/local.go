// Package local provides a zero-copy, in-process runtime connection.
//
// For runtimes compiled into the same binary as the node, this adapter
// serves the runtime over a storage backend it owns, with capability
// discovery and no serialization overhead.
package local

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/server"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/storage/memory"
)

// Compile-time interface check.
var _ rtcore.Connection = (*Connection)(nil)

// Options configures an in-process connection.
type Options struct {
	// Backend holds committed state. Nil uses a fresh in-memory store.
	// The connection closes it.
	Backend storage.Backend
	Logger  *zap.Logger
	// Registerer receives the server metrics. Nil disables them.
	Registerer prometheus.Registerer
}

// Connection serves a runtime in-process. Every rtcore.Connection
// method is promoted from the embedded server.
type Connection struct {
	*server.Server
	backend storage.Backend
}

// Open serves rt over the backend and commits genesis if the backend
// does not hold it yet.
func Open(ctx context.Context, rt rtcore.Runtime, opts Options) (*Connection, error) {
	backend := opts.Backend
	if backend == nil {
		backend = memory.New()
	}
	srv, err := server.New(rt, backend, server.Config{Logger: opts.Logger, Registerer: opts.Registerer})
	if err != nil {
		return nil, multierr.Append(err, backend.Close())
	}
	if _, err := srv.Init(ctx); err != nil {
		return nil, multierr.Append(fmt.Errorf("local: %w", err), backend.Close())
	}
	return &Connection{Server: srv, backend: backend}, nil
}

// Close releases open builders and closes the backend.
func (c *Connection) Close() error {
	return multierr.Append(c.Server.Close(), c.backend.Close())
}
