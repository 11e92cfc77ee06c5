package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/crypto"
	"github.com/blockberries/rtcore/example/counter"
	"github.com/blockberries/rtcore/example/tester"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/storage/memory"
	"github.com/blockberries/rtcore/types"
)

func newCounter(t *testing.T, cfg Config) (*Server, *counter.App, *memory.Store, types.Header) {
	t.Helper()
	app, err := counter.New(nil)
	if err != nil {
		t.Fatalf("counter.New: %v", err)
	}
	store := memory.New()
	srv, err := New(app, store, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	genesis, err := srv.Init(context.Background())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return srv, app, store, genesis
}

func increment(app *counter.App, genesis types.Hash, nonce uint32, by uint64) types.Extrinsic {
	return crypto.Sign(crypto.Dev("Alice"), app.IncrementCall(by), types.SignedExtra{
		SpecVersion:    1,
		TxVersion:      1,
		GenesisHash:    genesis,
		Era:            types.Immortal(),
		CheckpointHash: genesis,
		Nonce:          nonce,
	})
}

// build authors a block on parent through srv.
func build(t *testing.T, srv *Server, parent types.Header, xts ...types.Extrinsic) types.Block {
	t.Helper()
	ctx := context.Background()
	id, err := srv.InitializeBlock(ctx, types.Header{ParentHash: parent.Hash(), Number: parent.Number + 1})
	if err != nil {
		t.Fatalf("InitializeBlock: %v", err)
	}
	var block types.Block
	for _, xt := range xts {
		res, err := srv.ApplyExtrinsic(ctx, id, xt)
		if err != nil {
			t.Fatalf("ApplyExtrinsic: %v", err)
		}
		if res.Applied() {
			block.Extrinsics = append(block.Extrinsics, xt)
		}
	}
	header, err := srv.FinalizeBlock(ctx, id)
	if err != nil {
		t.Fatalf("FinalizeBlock: %v", err)
	}
	block.Header = header
	return block
}

func TestServer_InitIsIdempotent(t *testing.T) {
	srv, app, store, genesis := newCounter(t, Config{})

	again, err := srv.Init(context.Background())
	if err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if again.Hash() != genesis.Hash() {
		t.Errorf("genesis changed: %s != %s", again.Hash(), genesis.Hash())
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 committed block, got %d", store.Len())
	}

	other, err := New(app, memory.New(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := other.Genesis(context.Background()); !errors.Is(err, ErrNoGenesis) {
		t.Errorf("expected ErrNoGenesis, got %v", err)
	}
}

func TestServer_BuildAndImport(t *testing.T) {
	srv, app, store, genesis := newCounter(t, Config{})
	ctx := context.Background()

	block := build(t, srv, genesis,
		increment(app, genesis.Hash(), 0, 3),
		increment(app, genesis.Hash(), 1, 4),
	)
	if len(block.Extrinsics) != 2 {
		t.Fatalf("expected 2 extrinsics, got %d", len(block.Extrinsics))
	}
	snap, err := store.At(block.Header.Hash())
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if got := app.Counter.Count(snap); got != 7 {
		t.Errorf("expected count=7, got %d", got)
	}
	snap.Release()

	// A second node imports the block.
	importer, _, importStore, _ := newCounter(t, Config{})
	header, err := importer.ExecuteBlock(ctx, block)
	if err != nil {
		t.Fatalf("ExecuteBlock: %v", err)
	}
	if header.Hash() != block.Header.Hash() {
		t.Errorf("import produced %s, built %s", header.Hash(), block.Header.Hash())
	}
	if importStore.Len() != 2 {
		t.Errorf("expected 2 committed blocks, got %d", importStore.Len())
	}

	// A tampered block is rejected and not committed.
	bad := block
	bad.Header.StateRoot = types.Hash{1}
	bad.Header.Number = block.Header.Number
	_, err = importer.ExecuteBlock(ctx, bad)
	if _, ok := rtcore.IsBlockError(err); !ok {
		t.Errorf("expected BlockError, got %v", err)
	}
	if importStore.Len() != 2 {
		t.Errorf("bad block was committed")
	}
}

func TestServer_UnknownBuilder(t *testing.T) {
	srv, app, _, genesis := newCounter(t, Config{})
	ctx := context.Background()

	if _, err := srv.ApplyExtrinsic(ctx, "nope", increment(app, genesis.Hash(), 0, 1)); !errors.Is(err, ErrUnknownBuilder) {
		t.Errorf("expected ErrUnknownBuilder, got %v", err)
	}

	id, err := srv.InitializeBlock(ctx, types.Header{ParentHash: genesis.Hash(), Number: 1})
	if err != nil {
		t.Fatalf("InitializeBlock: %v", err)
	}
	if srv.Builders() != 1 {
		t.Errorf("expected 1 open builder, got %d", srv.Builders())
	}
	if _, err := srv.FinalizeBlock(ctx, id); err != nil {
		t.Fatalf("FinalizeBlock: %v", err)
	}
	if _, err := srv.FinalizeBlock(ctx, id); !errors.Is(err, ErrUnknownBuilder) {
		t.Errorf("expected ErrUnknownBuilder after finalize, got %v", err)
	}
	if srv.Builders() != 0 {
		t.Errorf("expected no open builders, got %d", srv.Builders())
	}
}

func TestServer_ConcurrentBuilders(t *testing.T) {
	srv, app, _, genesis := newCounter(t, Config{})

	var wg sync.WaitGroup
	headers := make([]types.Header, 4)
	for i := range headers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := context.Background()
			id, err := srv.InitializeBlock(ctx, types.Header{ParentHash: genesis.Hash(), Number: 1})
			if err != nil {
				t.Errorf("InitializeBlock: %v", err)
				return
			}
			if _, err := srv.ApplyExtrinsic(ctx, id, increment(app, genesis.Hash(), 0, uint64(i+1))); err != nil {
				t.Errorf("ApplyExtrinsic: %v", err)
			}
			headers[i], err = srv.FinalizeBlock(ctx, id)
			if err != nil {
				t.Errorf("FinalizeBlock: %v", err)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[types.Hash]bool)
	for _, h := range headers {
		seen[h.Hash()] = true
	}
	if len(seen) != len(headers) {
		t.Errorf("expected %d distinct forks, got %d", len(headers), len(seen))
	}
}

func TestServer_CapabilityGating(t *testing.T) {
	srv, _, _, genesis := newCounter(t, Config{})
	ctx := context.Background()

	if _, err := srv.GenerateSessionKeys(ctx, nil); !errors.Is(err, rtcore.ErrUnsupported) {
		t.Errorf("GenerateSessionKeys: expected ErrUnsupported, got %v", err)
	}
	if _, err := srv.BabeConfiguration(ctx, genesis.Hash()); !errors.Is(err, rtcore.ErrUnsupported) {
		t.Errorf("BabeConfiguration: expected ErrUnsupported, got %v", err)
	}
	if _, err := srv.GrandpaAuthorities(ctx, genesis.Hash()); !errors.Is(err, rtcore.ErrUnsupported) {
		t.Errorf("GrandpaAuthorities: expected ErrUnsupported, got %v", err)
	}
	if _, err := srv.RandomSeed(ctx, genesis.Hash()); !errors.Is(err, rtcore.ErrUnsupported) {
		t.Errorf("RandomSeed: expected ErrUnsupported, got %v", err)
	}
	if _, err := srv.SubmitEquivocationReport(ctx, genesis.Hash(), types.BabeEngineID, nil, nil); !errors.Is(err, rtcore.ErrUnsupported) {
		t.Errorf("SubmitEquivocationReport: expected ErrUnsupported, got %v", err)
	}
}

func TestServer_CapabilityFullAccess(t *testing.T) {
	rt, err := tester.Dev(tester.Options{})
	if err != nil {
		t.Fatalf("tester.Dev: %v", err)
	}
	srv, err := New(rt, memory.New(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	genesis, err := srv.Init(ctx)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	cfg, err := srv.BabeConfiguration(ctx, genesis.Hash())
	if err != nil {
		t.Fatalf("BabeConfiguration: %v", err)
	}
	if cfg.SlotDuration != 6000 || len(cfg.Authorities) != 1 {
		t.Errorf("unexpected configuration %+v", cfg)
	}
	set, err := srv.GrandpaAuthorities(ctx, genesis.Hash())
	if err != nil {
		t.Fatalf("GrandpaAuthorities: %v", err)
	}
	if len(set.Authorities) != 1 {
		t.Errorf("expected 1 grandpa authority, got %d", len(set.Authorities))
	}
	keys, err := srv.GenerateSessionKeys(ctx, []byte("seed"))
	if err != nil {
		t.Fatalf("GenerateSessionKeys: %v", err)
	}
	decoded, err := srv.DecodeSessionKeys(ctx, keys)
	if err != nil || len(decoded) != 2 {
		t.Errorf("DecodeSessionKeys: %v, %d keys", err, len(decoded))
	}
	if _, err := srv.RandomSeed(ctx, genesis.Hash()); err != nil {
		t.Errorf("RandomSeed: %v", err)
	}
	if _, err := srv.GenerateKeyOwnershipProof(ctx, genesis.Hash(), types.GrandpaEngineID, 0, types.AuthorityID{}); !errors.Is(err, rtcore.ErrUnsupported) {
		t.Errorf("GenerateKeyOwnershipProof: expected ErrUnsupported, got %v", err)
	}
}

// versioned overrides the declared APIs of a runtime.
type versioned struct {
	*tester.Runtime
	version types.RuntimeVersion
}

func (v versioned) Version() types.RuntimeVersion { return v.version }

// declaring claims an API the counter runtime does not implement.
type declaring struct {
	*counter.App
}

func (d declaring) Version() types.RuntimeVersion {
	v := d.App.Version()
	v.Apis = append(v.Apis, types.ApiVersion{ID: types.ApiIDOf(rtcore.APIBabe), Version: 2})
	return v
}

func TestServer_DeclaredButMissing(t *testing.T) {
	app, err := counter.New(nil)
	if err != nil {
		t.Fatalf("counter.New: %v", err)
	}
	if _, err := New(declaring{app}, memory.New(), Config{}); err == nil {
		t.Error("expected error for declared but unimplemented API")
	}
}

func TestServer_UndeclaredIsNotUsed(t *testing.T) {
	rt, err := tester.Dev(tester.Options{})
	if err != nil {
		t.Fatalf("tester.Dev: %v", err)
	}
	v := rt.Version()
	v.Apis = nil
	core, logs := observer.New(zap.WarnLevel)

	srv, err := New(versioned{rt, v}, memory.New(), Config{Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := srv.GenerateSessionKeys(context.Background(), nil); !errors.Is(err, rtcore.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if n := logs.FilterMessage("runtime implements an undeclared API; it will not be used").Len(); n != 3 {
		t.Errorf("expected 3 warnings, got %d", n)
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv, app, _, genesis := newCounter(t, Config{Registerer: reg})
	ctx := context.Background()

	build(t, srv, genesis,
		increment(app, genesis.Hash(), 0, 1),
		increment(app, genesis.Hash(), 0, 1),
	)
	if _, err := srv.ValidateTransaction(ctx, genesis.Hash(), types.SourceExternal, increment(app, genesis.Hash(), 0, 1)); err != nil {
		t.Fatalf("ValidateTransaction: %v", err)
	}

	m := srv.metrics
	if got := testutil.ToFloat64(m.blocks.WithLabelValues("counter", "build", "ok")); got != 1 {
		t.Errorf("expected 1 built block, got %v", got)
	}
	if got := testutil.ToFloat64(m.extrinsics.WithLabelValues("counter", "success")); got != 1 {
		t.Errorf("expected 1 successful extrinsic, got %v", got)
	}
	if got := testutil.ToFloat64(m.extrinsics.WithLabelValues("counter", "invalid")); got != 1 {
		t.Errorf("expected 1 invalid extrinsic, got %v", got)
	}
	if got := testutil.ToFloat64(m.validations.WithLabelValues("counter", "valid")); got != 1 {
		t.Errorf("expected 1 valid validation, got %v", got)
	}
	if got := testutil.ToFloat64(m.blockWeight.WithLabelValues("counter")); got <= 0 {
		t.Errorf("expected positive block weight, got %v", got)
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Errorf("expected registered series, got %d (%v)", n, err)
	}
}

func TestServer_Storage(t *testing.T) {
	srv, _, _, genesis := newCounter(t, Config{})
	v, err := srv.Storage(context.Background(), genesis.Hash(), []byte("missing"))
	if err != nil {
		t.Fatalf("Storage: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil for a missing key, got %x", v)
	}
	if _, err := srv.Storage(context.Background(), types.Hash{9}, nil); err == nil {
		t.Error("expected error for an unknown block")
	}
}

var errDisk = errors.New("disk read failed")

// faulty reports errDisk from every snapshot it hands out.
type faulty struct{ *memory.Store }

func (f faulty) At(hash types.Hash) (storage.Snapshot, error) {
	snap, err := f.Store.At(hash)
	if err != nil {
		return nil, err
	}
	return faultySnapshot{snap}, nil
}

type faultySnapshot struct{ storage.Snapshot }

func (faultySnapshot) Err() error { return errDisk }

func TestServer_ReadFailureIsNotCommitted(t *testing.T) {
	srv, app, _, genesis := newCounter(t, Config{})
	block := build(t, srv, genesis, increment(app, genesis.Hash(), 0, 1))

	app2, err := counter.New(nil)
	if err != nil {
		t.Fatalf("counter.New: %v", err)
	}
	store := memory.New()
	importer, err := New(app2, faulty{store}, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if _, err := importer.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if _, err := importer.ExecuteBlock(ctx, block); !errors.Is(err, errDisk) {
		t.Fatalf("expected the read failure, got %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("block was committed over a failed read")
	}
	if _, err := importer.InitializeBlock(ctx, types.Header{ParentHash: genesis.Hash(), Number: 1}); !errors.Is(err, errDisk) {
		t.Errorf("InitializeBlock: expected the read failure, got %v", err)
	}
	if _, err := importer.Storage(ctx, genesis.Hash(), []byte("missing")); !errors.Is(err, errDisk) {
		t.Errorf("Storage: expected the read failure, got %v", err)
	}
}
