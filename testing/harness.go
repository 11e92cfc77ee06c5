package rttest

import (
	"bytes"
	"context"
	"testing"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/crypto"
	"github.com/blockberries/rtcore/server"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/storage/memory"
	"github.com/blockberries/rtcore/types"
)

// Harness provides a convenient test harness for runtime developers:
// it builds, imports and validates through an rtcore.Connection and
// tracks the chain head.
type Harness struct {
	t       *testing.T
	conn    rtcore.Connection
	genesis types.Header
	head    types.Header

	// Inherents returns the inherent data of block n. Nil builds
	// blocks without inherents.
	Inherents func(n types.BlockNumber) types.InherentData
	// Digest returns the pre-runtime digest of block n.
	Digest func(n types.BlockNumber) types.Digest
}

// NewHarness serves rt from an in-memory backend and commits genesis.
func NewHarness(t *testing.T, rt rtcore.Runtime) *Harness {
	t.Helper()
	srv, err := server.New(rt, memory.New(), server.Config{})
	if err != nil {
		t.Fatalf("server.New failed: %v", err)
	}
	if _, err := srv.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return NewConnHarness(t, srv)
}

// NewConnHarness drives an existing connection whose genesis is
// already initialized.
func NewConnHarness(t *testing.T, conn rtcore.Connection) *Harness {
	t.Helper()
	g, err := conn.Genesis(context.Background())
	if err != nil {
		t.Fatalf("Genesis failed: %v", err)
	}
	return &Harness{t: t, conn: conn, genesis: g, head: g}
}

// Conn returns the underlying connection for direct access.
func (h *Harness) Conn() rtcore.Connection { return h.conn }

// Genesis returns the genesis header.
func (h *Harness) Genesis() types.Header { return h.genesis }

// Head returns the last block built or imported.
func (h *Harness) Head() types.Header { return h.head }

// SetHead moves the head, for building forks.
func (h *Harness) SetHead(head types.Header) { h.head = head }

// Version returns the runtime version.
func (h *Harness) Version() types.RuntimeVersion {
	h.t.Helper()
	v, err := h.conn.Version(context.Background())
	if err != nil {
		h.t.Fatalf("Version failed: %v", err)
	}
	return v
}

// Sign signs call for this chain as an immortal extrinsic.
func (h *Harness) Sign(k crypto.Keypair, nonce uint32, call types.Call) types.Extrinsic {
	h.t.Helper()
	v := h.Version()
	return crypto.Sign(k, call, types.SignedExtra{
		SpecVersion:    v.SpecVersion,
		TxVersion:      v.TransactionVersion,
		GenesisHash:    h.genesis.Hash(),
		Era:            types.Immortal(),
		CheckpointHash: h.genesis.Hash(),
		Nonce:          nonce,
	})
}

// BuildBlock authors a block on the head with the inherents first and
// then xts, and makes it the new head. Extrinsics that fail validity
// are left out of the block; results has one entry per xt.
func (h *Harness) BuildBlock(xts ...types.Extrinsic) (block types.Block, results []types.ApplyExtrinsicResult) {
	h.t.Helper()
	ctx := context.Background()
	n := h.head.Number + 1
	header := types.Header{ParentHash: h.head.Hash(), Number: n}
	if h.Digest != nil {
		header.Digest = h.Digest(n)
	}
	id, err := h.conn.InitializeBlock(ctx, header)
	if err != nil {
		h.t.Fatalf("InitializeBlock (number=%d) failed: %v", n, err)
	}

	if h.Inherents != nil {
		inherents, err := h.conn.InherentExtrinsics(ctx, h.head.Hash(), h.Inherents(n))
		if err != nil {
			h.t.Fatalf("InherentExtrinsics failed: %v", err)
		}
		for i, xt := range inherents {
			res, err := h.conn.ApplyExtrinsic(ctx, id, xt)
			if err != nil {
				h.t.Fatalf("ApplyExtrinsic (inherent %d) failed: %v", i, err)
			}
			if !res.Succeeded() {
				h.t.Fatalf("inherent %d failed: %+v", i, res)
			}
			block.Extrinsics = append(block.Extrinsics, xt)
		}
	}

	for i, xt := range xts {
		res, err := h.conn.ApplyExtrinsic(ctx, id, xt)
		if err != nil {
			h.t.Fatalf("ApplyExtrinsic (extrinsic %d) failed: %v", i, err)
		}
		results = append(results, res)
		if res.Applied() {
			block.Extrinsics = append(block.Extrinsics, xt)
		}
	}

	block.Header, err = h.conn.FinalizeBlock(ctx, id)
	if err != nil {
		h.t.Fatalf("FinalizeBlock (number=%d) failed: %v", n, err)
	}
	h.head = block.Header
	return block, results
}

// ImportBlock executes block and makes it the new head.
func (h *Harness) ImportBlock(block types.Block) types.Header {
	h.t.Helper()
	header, err := h.conn.ExecuteBlock(context.Background(), block)
	if err != nil {
		h.t.Fatalf("ExecuteBlock (number=%d) failed: %v", block.Header.Number, err)
	}
	h.head = block.Header
	return header
}

// Validate checks xt for the pool at the head.
func (h *Harness) Validate(source types.TransactionSource, xt types.Extrinsic) types.TransactionValidity {
	h.t.Helper()
	res, err := h.conn.ValidateTransaction(context.Background(), h.head.Hash(), source, xt)
	if err != nil {
		h.t.Fatalf("ValidateTransaction failed: %v", err)
	}
	return res
}

// MustAccept asserts that the pool accepts xt.
func (h *Harness) MustAccept(xt types.Extrinsic) types.ValidTransaction {
	h.t.Helper()
	res := h.Validate(types.SourceExternal, xt)
	if !res.IsValid() {
		h.t.Fatalf("expected extrinsic accepted, got %v", res.Error)
	}
	return *res.Valid
}

// MustReject asserts that the pool rejects xt and returns the reason.
func (h *Harness) MustReject(xt types.Extrinsic) *types.TransactionValidityError {
	h.t.Helper()
	res := h.Validate(types.SourceExternal, xt)
	if res.IsValid() {
		h.t.Fatal("expected extrinsic rejected, got accepted")
	}
	return res.Error
}

// Storage reads a raw state value at the head.
func (h *Harness) Storage(key []byte) []byte {
	h.t.Helper()
	v, err := h.conn.Storage(context.Background(), h.head.Hash(), key)
	if err != nil {
		h.t.Fatalf("Storage failed: %v", err)
	}
	return v
}

// Load reads a typed storage value at the head.
func Load[T any](h *Harness, v storage.Value[T]) T {
	h.t.Helper()
	return v.Load(single{key: v.Key(), value: h.Storage(v.Key())})
}

// single is a reader holding one key.
type single struct{ key, value []byte }

func (s single) Get(key []byte) ([]byte, bool) {
	if len(s.value) == 0 || !bytes.Equal(key, s.key) {
		return nil, false
	}
	return s.value, true
}

func (single) Iterate([]byte, func(key, value []byte) bool) {}
