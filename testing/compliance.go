package rttest

import (
	"context"
	"sync"
	"testing"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/crypto"
	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/types"
)

// Suite describes the runtime under a compliance run.
type Suite struct {
	// New returns a fresh runtime. Every instance must produce the
	// same genesis.
	New func() rtcore.Runtime
	// Call returns a cheap call any signed account can dispatch.
	Call func(rt rtcore.Runtime) types.Call
	// Inherents and Digest, when set, are passed to the harness for
	// runtimes that need them in every block.
	Inherents func(n types.BlockNumber) types.InherentData
	Digest    func(n types.BlockNumber) types.Digest
}

func (s Suite) harness(t *testing.T) (*Harness, rtcore.Runtime) {
	t.Helper()
	rt := s.New()
	h := NewHarness(t, rt)
	h.Inherents = s.Inherents
	h.Digest = s.Digest
	return h, rt
}

// RunComplianceSuite runs a standard compliance test suite against a
// runtime to verify deterministic execution and the validity rules
// every runtime shares.
func RunComplianceSuite(t *testing.T, s Suite) {
	t.Helper()
	alice := crypto.Dev("Alice")

	t.Run("genesis_deterministic", func(t *testing.T) {
		h1, _ := s.harness(t)
		h2, _ := s.harness(t)
		g1, g2 := h1.Genesis(), h2.Genesis()
		if g1.Hash() != g2.Hash() {
			t.Errorf("non-deterministic genesis: %s != %s", g1.Hash(), g2.Hash())
		}
		if h1.Genesis().Number != 0 {
			t.Errorf("genesis number should be 0, got %d", h1.Genesis().Number)
		}
	})

	t.Run("build_import_cycle", func(t *testing.T) {
		author, _ := s.harness(t)
		importer, _ := s.harness(t)

		for i := types.BlockNumber(1); i <= 5; i++ {
			block, _ := author.BuildBlock()
			if block.Header.Number != i {
				t.Fatalf("expected block %d, got %d", i, block.Header.Number)
			}
			got := importer.ImportBlock(block)
			if got.Hash() != block.Header.Hash() {
				t.Errorf("block %d: import produced %s, built %s", i, got.Hash(), block.Header.Hash())
			}
		}
	})

	t.Run("deterministic_with_extrinsics", func(t *testing.T) {
		h1, rt := s.harness(t)
		h2, _ := s.harness(t)

		block, results := h1.BuildBlock(
			h1.Sign(alice, 0, s.Call(rt)),
			h1.Sign(alice, 1, s.Call(rt)),
		)
		for i, r := range results {
			if !r.Succeeded() {
				t.Fatalf("extrinsic %d failed: %+v", i, r)
			}
		}
		got := h2.ImportBlock(block)
		if got.StateRoot != block.Header.StateRoot {
			t.Errorf("non-deterministic state root: %s != %s", got.StateRoot, block.Header.StateRoot)
		}
	})

	t.Run("nonce_progression", func(t *testing.T) {
		h, rt := s.harness(t)

		_, results := h.BuildBlock(
			h.Sign(alice, 0, s.Call(rt)),
			h.Sign(alice, 0, s.Call(rt)),
			h.Sign(alice, 2, s.Call(rt)),
		)
		if !results[0].Applied() {
			t.Errorf("nonce 0 should apply, got %v", results[0].Validity)
		}
		if !types.IsInvalid(results[1].Validity, types.InvalidStale) {
			t.Errorf("replayed nonce should be Stale, got %v", results[1].Validity)
		}
		if !types.IsInvalid(results[2].Validity, types.InvalidFuture) {
			t.Errorf("future nonce should be Future in a block, got %v", results[2].Validity)
		}

		if err := h.MustReject(h.Sign(alice, 0, s.Call(rt))); !types.IsInvalid(err, types.InvalidStale) {
			t.Errorf("pool: expected Stale, got %v", err)
		}
		valid := h.MustAccept(h.Sign(alice, 2, s.Call(rt)))
		if len(valid.Requires) != 1 {
			t.Errorf("pool: future nonce should require its predecessor, got %d tags", len(valid.Requires))
		}
	})

	t.Run("bad_signature_rejected", func(t *testing.T) {
		h, rt := s.harness(t)
		xt := h.Sign(alice, 0, s.Call(rt))
		xt.Signature.Signer = crypto.Dev("Bob").Account()
		if err := h.MustReject(xt); !types.IsInvalid(err, types.InvalidBadProof) {
			t.Errorf("expected BadProof, got %v", err)
		}
	})

	t.Run("concurrent_validate", func(t *testing.T) {
		h, rt := s.harness(t)
		xt := h.Sign(alice, 0, s.Call(rt))
		hd := h.Head()
		head := hd.Hash()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := h.Conn().ValidateTransaction(context.Background(), head, types.SourceExternal, xt)
				if err != nil {
					t.Errorf("concurrent ValidateTransaction failed: %v", err)
					return
				}
				if !res.IsValid() {
					t.Errorf("concurrent ValidateTransaction rejected: %v", res.Error)
				}
			}()
		}
		wg.Wait()
	})

	t.Run("metadata_matches_version", func(t *testing.T) {
		h, _ := s.harness(t)
		opaque, err := h.Conn().Metadata(context.Background())
		if err != nil {
			t.Fatalf("Metadata failed: %v", err)
		}
		md, err := frame.DecodeMetadata(opaque)
		if err != nil {
			t.Fatalf("DecodeMetadata failed: %v", err)
		}
		if md.SpecName != h.Version().SpecName {
			t.Errorf("metadata spec name %q, version %q", md.SpecName, h.Version().SpecName)
		}
		if len(md.Modules) == 0 || md.Modules[0].Name != "System" {
			t.Errorf("first module should be System, got %+v", md.Modules)
		}
	})

	t.Run("unknown_parent_rejected", func(t *testing.T) {
		h, _ := s.harness(t)
		_, err := h.Conn().InitializeBlock(context.Background(), types.Header{ParentHash: types.Hash{0xff}, Number: 1})
		if err == nil {
			t.Error("expected error building on an unknown parent")
		}
	})
}
