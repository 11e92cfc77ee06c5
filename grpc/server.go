package rtgrpc

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/types"
)

// Compile-time interface check.
var _ RuntimeServiceServer = (*GRPCServer)(nil)

// ServerConfig configures a GRPCServer.
type ServerConfig struct {
	Logger *zap.Logger
	// Registerer receives the per-method call metrics. Nil disables
	// them.
	Registerer prometheus.Registerer
}

// GRPCServer exposes a runtime connection as a gRPC service. No type
// conversion is needed: domain types are serialized directly via
// cramberry.
type GRPCServer struct {
	conn rtcore.Connection
	log  *zap.Logger
	seq  atomic.Uint64

	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewGRPCServer creates a gRPC service over conn, typically a
// *server.Server.
func NewGRPCServer(conn rtcore.Connection, cfg ServerConfig) *GRPCServer {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &GRPCServer{
		conn: conn,
		log:  log.Named("grpc"),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtcore_grpc_server_calls",
			Help: "Number of gRPC calls by method and outcome.",
		}, []string{"method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "rtcore_grpc_server_latency_seconds",
			Help: "gRPC call latency by method.",
		}, []string{"method"}),
	}
	if cfg.Registerer != nil {
		cfg.Registerer.MustRegister(s.calls, s.latency)
	}
	return s
}

// ServerOptions returns the interceptors every server hosting this
// service needs.
func (s *GRPCServer) ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(s.unaryLogger, serverUnaryErrorMapper),
	}
}

// Register adds the runtime service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterRuntimeServiceServer(gs, s)
}

// NewServer returns a gRPC server hosting this service.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	gs := grpc.NewServer(append(s.ServerOptions(), opts...)...)
	s.Register(gs)
	return gs
}

// Serve starts a gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	return s.NewServer(opts...).Serve(lis)
}

// Conn returns the underlying connection for advanced use.
func (s *GRPCServer) Conn() rtcore.Connection {
	return s.conn
}

func (s *GRPCServer) unaryLogger(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	seq := s.seq.Add(1)
	if ce := s.log.Check(zap.DebugLevel, "request"); ce != nil {
		ce.Write(zap.String("method", info.FullMethod), zap.Uint64("req_seq", seq))
	}

	start := time.Now()
	resp, err := handler(ctx, req)
	s.latency.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())

	s.calls.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
	if err != nil {
		s.log.Debug("request failed",
			zap.String("method", info.FullMethod),
			zap.Uint64("req_seq", seq),
			zap.Error(err),
		)
	}
	return resp, err
}

// --- Core ---

func (s *GRPCServer) Version(ctx context.Context, _ *Empty) (*types.RuntimeVersion, error) {
	v, err := s.conn.Version(ctx)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *GRPCServer) Genesis(ctx context.Context, _ *Empty) (*types.Header, error) {
	h, err := s.conn.Genesis(ctx)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *GRPCServer) ExecuteBlock(ctx context.Context, block *types.Block) (*types.Header, error) {
	h, err := s.conn.ExecuteBlock(ctx, *block)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// --- Block building ---

func (s *GRPCServer) InitializeBlock(ctx context.Context, header *types.Header) (*BuilderRef, error) {
	id, err := s.conn.InitializeBlock(ctx, *header)
	if err != nil {
		return nil, err
	}
	return &BuilderRef{ID: string(id)}, nil
}

func (s *GRPCServer) ApplyExtrinsic(ctx context.Context, req *ApplyExtrinsicRequest) (*types.ApplyExtrinsicResult, error) {
	res, err := s.conn.ApplyExtrinsic(ctx, rtcore.BuilderID(req.ID), req.Extrinsic)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *GRPCServer) FinalizeBlock(ctx context.Context, ref *BuilderRef) (*types.Header, error) {
	h, err := s.conn.FinalizeBlock(ctx, rtcore.BuilderID(ref.ID))
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// --- Queries ---

func (s *GRPCServer) Metadata(ctx context.Context, _ *Empty) (*MetadataResponse, error) {
	md, err := s.conn.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	return &MetadataResponse{Metadata: md}, nil
}

func (s *GRPCServer) InherentExtrinsics(ctx context.Context, req *InherentExtrinsicsRequest) (*ExtrinsicsResponse, error) {
	xts, err := s.conn.InherentExtrinsics(ctx, req.At, req.Data)
	if err != nil {
		return nil, err
	}
	return &ExtrinsicsResponse{Extrinsics: xts}, nil
}

func (s *GRPCServer) CheckInherents(ctx context.Context, req *CheckInherentsRequest) (*types.CheckInherentsResult, error) {
	res, err := s.conn.CheckInherents(ctx, req.At, req.Block, req.Data)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *GRPCServer) RandomSeed(ctx context.Context, req *AtRequest) (*HashResponse, error) {
	seed, err := s.conn.RandomSeed(ctx, req.At)
	if err != nil {
		return nil, err
	}
	return &HashResponse{Hash: seed}, nil
}

func (s *GRPCServer) ValidateTransaction(ctx context.Context, req *ValidateTransactionRequest) (*types.TransactionValidity, error) {
	res, err := s.conn.ValidateTransaction(ctx, req.At, req.Source, req.Extrinsic)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *GRPCServer) Storage(ctx context.Context, req *StorageRequest) (*BytesMessage, error) {
	v, err := s.conn.Storage(ctx, req.At, req.Key)
	if err != nil {
		return nil, err
	}
	return &BytesMessage{Data: v}, nil
}

// --- Optional capabilities ---

func (s *GRPCServer) GenerateSessionKeys(ctx context.Context, req *BytesMessage) (*BytesMessage, error) {
	keys, err := s.conn.GenerateSessionKeys(ctx, req.Data)
	if err != nil {
		return nil, err
	}
	return &BytesMessage{Data: keys}, nil
}

func (s *GRPCServer) DecodeSessionKeys(ctx context.Context, req *BytesMessage) (*SessionKeysResponse, error) {
	keys, err := s.conn.DecodeSessionKeys(ctx, req.Data)
	if err != nil {
		return nil, err
	}
	return &SessionKeysResponse{Keys: keys}, nil
}

func (s *GRPCServer) BabeConfiguration(ctx context.Context, req *AtRequest) (*types.EpochConfiguration, error) {
	cfg, err := s.conn.BabeConfiguration(ctx, req.At)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *GRPCServer) CurrentEpochStart(ctx context.Context, req *AtRequest) (*SlotResponse, error) {
	slot, err := s.conn.CurrentEpochStart(ctx, req.At)
	if err != nil {
		return nil, err
	}
	return &SlotResponse{Slot: slot}, nil
}

func (s *GRPCServer) GrandpaAuthorities(ctx context.Context, req *AtRequest) (*types.AuthoritySet, error) {
	set, err := s.conn.GrandpaAuthorities(ctx, req.At)
	if err != nil {
		return nil, err
	}
	return &set, nil
}

func (s *GRPCServer) GenerateKeyOwnershipProof(ctx context.Context, req *KeyOwnershipProofRequest) (*KeyOwnershipProofResponse, error) {
	proof, err := s.conn.GenerateKeyOwnershipProof(ctx, req.At, req.Engine, req.SlotOrSet, req.Authority)
	if err != nil {
		return nil, err
	}
	return &KeyOwnershipProofResponse{Proof: proof}, nil
}

func (s *GRPCServer) SubmitEquivocationReport(ctx context.Context, req *EquivocationReportRequest) (*types.Extrinsic, error) {
	xt, err := s.conn.SubmitEquivocationReport(ctx, req.At, req.Engine, req.Proof, req.Owner)
	if err != nil {
		return nil, err
	}
	return &xt, nil
}
