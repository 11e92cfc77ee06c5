package rtgrpc_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/crypto"
	"github.com/blockberries/rtcore/example/counter"
	"github.com/blockberries/rtcore/example/tester"
	rtgrpc "github.com/blockberries/rtcore/grpc"
	"github.com/blockberries/rtcore/server"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/storage/memory"
	rttest "github.com/blockberries/rtcore/testing"
	"github.com/blockberries/rtcore/types"
)

// serve starts a gRPC server for rt on a random port and returns a
// connected client. Everything is torn down with the test.
func serve(t *testing.T, rt rtcore.Runtime, reg prometheus.Registerer) *rtgrpc.Client {
	t.Helper()
	srv, err := server.New(rt, memory.New(), server.Config{Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	if _, err := srv.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	gs := rtgrpc.NewGRPCServer(srv, rtgrpc.ServerConfig{Logger: zaptest.NewLogger(t), Registerer: reg}).NewServer()
	go func() {
		// Serve returns when the server is stopped.
		_ = gs.Serve(lis)
	}()

	client, err := rtgrpc.Dial(lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		gs.GracefulStop()
		srv.Close()
	})
	return client
}

func newCounter(t *testing.T) *counter.App {
	t.Helper()
	app, err := counter.New(nil)
	if err != nil {
		t.Fatalf("counter.New: %v", err)
	}
	return app
}

func TestGRPC_Counter_BuildAndImport(t *testing.T) {
	app := newCounter(t)
	author := rttest.NewConnHarness(t, serve(t, app, nil))
	importer := rttest.NewConnHarness(t, serve(t, newCounter(t), nil))
	alice := crypto.Dev("Alice")

	ag, ig := author.Genesis(), importer.Genesis()
	if ag.Hash() != ig.Hash() {
		t.Fatal("genesis differs between servers")
	}

	for i := uint32(0); i < 3; i++ {
		block, results := author.BuildBlock(author.Sign(alice, i, app.IncrementCall(2)))
		if !results[0].Succeeded() {
			t.Fatalf("increment %d failed: %+v", i, results[0])
		}
		got := importer.ImportBlock(block)
		if got.Hash() != block.Header.Hash() {
			t.Fatalf("block %d: imported %s, built %s", i+1, got.Hash(), block.Header.Hash())
		}
	}

	if count := rttest.Load(importer, counter.Count); count != 6 {
		t.Errorf("expected count=6, got %d", count)
	}
	if v := importer.Storage([]byte("missing")); v != nil {
		t.Errorf("missing key should read nil, got %x", v)
	}
}

func TestGRPC_Counter_Validate(t *testing.T) {
	app := newCounter(t)
	h := rttest.NewConnHarness(t, serve(t, app, nil))
	alice := crypto.Dev("Alice")

	valid := h.MustAccept(h.Sign(alice, 0, app.IncrementCall(1)))
	if len(valid.Provides) != 1 {
		t.Errorf("expected 1 provided tag, got %d", len(valid.Provides))
	}

	xt := h.Sign(alice, 0, app.IncrementCall(1))
	xt.Signature.Signer = crypto.Dev("Bob").Account()
	if err := h.MustReject(xt); !types.IsInvalid(err, types.InvalidBadProof) {
		t.Errorf("expected BadProof, got %v", err)
	}
}

func TestGRPC_Counter_Unsupported(t *testing.T) {
	client := serve(t, newCounter(t), nil)
	ctx := context.Background()
	g, err := client.Genesis(ctx)
	if err != nil {
		t.Fatalf("Genesis: %v", err)
	}

	if _, err := client.GenerateSessionKeys(ctx, nil); !errors.Is(err, rtcore.ErrUnsupported) {
		t.Errorf("GenerateSessionKeys: expected ErrUnsupported, got %v", err)
	}
	if _, err := client.BabeConfiguration(ctx, g.Hash()); !errors.Is(err, rtcore.ErrUnsupported) {
		t.Errorf("BabeConfiguration: expected ErrUnsupported, got %v", err)
	}
	if _, err := client.GrandpaAuthorities(ctx, g.Hash()); !errors.Is(err, rtcore.ErrUnsupported) {
		t.Errorf("GrandpaAuthorities: expected ErrUnsupported, got %v", err)
	}
}

func TestGRPC_Tester_Capabilities(t *testing.T) {
	rt, err := tester.Dev(tester.Options{})
	if err != nil {
		t.Fatalf("tester.Dev: %v", err)
	}
	client := serve(t, rt, nil)
	ctx := context.Background()
	g, err := client.Genesis(ctx)
	if err != nil {
		t.Fatalf("Genesis: %v", err)
	}

	cfg, err := client.BabeConfiguration(ctx, g.Hash())
	if err != nil {
		t.Fatalf("BabeConfiguration: %v", err)
	}
	if cfg.SlotDuration != tester.DefaultParams().SlotDuration {
		t.Errorf("slot duration %d", cfg.SlotDuration)
	}

	set, err := client.GrandpaAuthorities(ctx, g.Hash())
	if err != nil {
		t.Fatalf("GrandpaAuthorities: %v", err)
	}
	if len(set.Authorities) != 1 || set.SetID != 0 {
		t.Errorf("unexpected authority set: %+v", set)
	}

	encoded, err := client.GenerateSessionKeys(ctx, []byte("//Alice"))
	if err != nil {
		t.Fatalf("GenerateSessionKeys: %v", err)
	}
	keys, err := client.DecodeSessionKeys(ctx, encoded)
	if err != nil {
		t.Fatalf("DecodeSessionKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 session keys, got %d", len(keys))
	}

	_, err = client.GenerateKeyOwnershipProof(ctx, g.Hash(), types.BabeEngineID, 1, types.AuthorityID{})
	if !errors.Is(err, rtcore.ErrUnsupported) {
		t.Errorf("GenerateKeyOwnershipProof: expected ErrUnsupported, got %v", err)
	}
}

func TestGRPC_ErrorMapping(t *testing.T) {
	mock := &rttest.MockRuntime{
		ExecuteBlockFn: func(context.Context, storage.Snapshot, types.Block) (rtcore.BlockResult, error) {
			return rtcore.BlockResult{}, rtcore.NewBlockError(1, "state root mismatch", errors.New("boom"))
		},
		MetadataFn: func(context.Context) (types.OpaqueMetadata, error) {
			return nil, errors.New("metadata exploded")
		},
	}
	client := serve(t, mock, nil)
	ctx := context.Background()
	g, err := client.Genesis(ctx)
	if err != nil {
		t.Fatalf("Genesis: %v", err)
	}

	_, err = client.ExecuteBlock(ctx, types.Block{Header: types.Header{ParentHash: g.Hash(), Number: 1}})
	be, ok := rtcore.IsBlockError(err)
	if !ok {
		t.Fatalf("expected BlockError, got %v", err)
	}
	if be.Number != 1 || be.Reason != "state root mismatch" || be.Err == nil || be.Err.Error() != "boom" {
		t.Errorf("BlockError not preserved: %+v", be)
	}

	if _, err := client.ApplyExtrinsic(ctx, "nope", types.Extrinsic{}); !errors.Is(err, server.ErrUnknownBuilder) {
		t.Errorf("expected ErrUnknownBuilder, got %v", err)
	}
	if _, err := client.Storage(ctx, types.Hash{0xff}, []byte("k")); !errors.Is(err, storage.ErrUnknownBlock) {
		t.Errorf("expected ErrUnknownBlock, got %v", err)
	}
	if _, err := client.Metadata(ctx); !rtgrpc.IsErrorCode(err, codes.Internal) {
		t.Errorf("expected Internal, got %v", err)
	}
	if mock.ExecuteBlockCalls.Load() != 1 {
		t.Errorf("expected 1 ExecuteBlock call, got %d", mock.ExecuteBlockCalls.Load())
	}
}

func TestGRPC_BuilderRoundTrip(t *testing.T) {
	client := serve(t, &rttest.MockRuntime{}, nil)
	ctx := context.Background()
	g, err := client.Genesis(ctx)
	if err != nil {
		t.Fatalf("Genesis: %v", err)
	}

	id, err := client.InitializeBlock(ctx, types.Header{ParentHash: g.Hash(), Number: 1})
	if err != nil {
		t.Fatalf("InitializeBlock: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := client.ApplyExtrinsic(ctx, id, types.NewUnsigned(types.Call{})); err != nil {
			t.Fatalf("ApplyExtrinsic: %v", err)
		}
	}
	h, err := client.FinalizeBlock(ctx, id)
	if err != nil {
		t.Fatalf("FinalizeBlock: %v", err)
	}
	if h.ExtrinsicsRoot[0] != 3 || h.Number != 1 {
		t.Errorf("unexpected header: %+v", h)
	}
	if _, err := client.FinalizeBlock(ctx, id); !errors.Is(err, server.ErrUnknownBuilder) {
		t.Errorf("finalized builder should be gone, got %v", err)
	}
}

func TestGRPC_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	client := serve(t, &rttest.MockRuntime{}, reg)
	ctx := context.Background()

	if _, err := client.Version(ctx); err != nil {
		t.Fatalf("Version: %v", err)
	}
	if _, err := client.Storage(ctx, types.Hash{0xff}, nil); err == nil {
		t.Fatal("expected unknown block error")
	}

	if n, err := testutil.GatherAndCount(reg, "rtcore_grpc_server_calls"); err != nil || n != 2 {
		t.Errorf("expected 2 call series, got %d (%v)", n, err)
	}
}
