package rtgrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/blockberries/rtcore/types"
)

const serviceName = "rtcore.v1.RuntimeService"

// RuntimeServiceServer is the server-side interface for the runtime
// gRPC service.
type RuntimeServiceServer interface {
	Version(context.Context, *Empty) (*types.RuntimeVersion, error)
	Genesis(context.Context, *Empty) (*types.Header, error)
	ExecuteBlock(context.Context, *types.Block) (*types.Header, error)
	InitializeBlock(context.Context, *types.Header) (*BuilderRef, error)
	ApplyExtrinsic(context.Context, *ApplyExtrinsicRequest) (*types.ApplyExtrinsicResult, error)
	FinalizeBlock(context.Context, *BuilderRef) (*types.Header, error)
	Metadata(context.Context, *Empty) (*MetadataResponse, error)
	InherentExtrinsics(context.Context, *InherentExtrinsicsRequest) (*ExtrinsicsResponse, error)
	CheckInherents(context.Context, *CheckInherentsRequest) (*types.CheckInherentsResult, error)
	RandomSeed(context.Context, *AtRequest) (*HashResponse, error)
	ValidateTransaction(context.Context, *ValidateTransactionRequest) (*types.TransactionValidity, error)
	Storage(context.Context, *StorageRequest) (*BytesMessage, error)
	GenerateSessionKeys(context.Context, *BytesMessage) (*BytesMessage, error)
	DecodeSessionKeys(context.Context, *BytesMessage) (*SessionKeysResponse, error)
	BabeConfiguration(context.Context, *AtRequest) (*types.EpochConfiguration, error)
	CurrentEpochStart(context.Context, *AtRequest) (*SlotResponse, error)
	GrandpaAuthorities(context.Context, *AtRequest) (*types.AuthoritySet, error)
	GenerateKeyOwnershipProof(context.Context, *KeyOwnershipProofRequest) (*KeyOwnershipProofResponse, error)
	SubmitEquivocationReport(context.Context, *EquivocationReportRequest) (*types.Extrinsic, error)
}

// RegisterRuntimeServiceServer registers the RuntimeServiceServer on a
// gRPC server.
func RegisterRuntimeServiceServer(s *grpc.Server, srv RuntimeServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// --- Handler functions ---

func handlerVersion(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).Version(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Version")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).Version(ctx, req.(*Empty))
	})
}

func handlerGenesis(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).Genesis(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Genesis")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).Genesis(ctx, req.(*Empty))
	})
}

func handlerExecuteBlock(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(types.Block)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).ExecuteBlock(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("ExecuteBlock")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).ExecuteBlock(ctx, req.(*types.Block))
	})
}

func handlerInitializeBlock(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(types.Header)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).InitializeBlock(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("InitializeBlock")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).InitializeBlock(ctx, req.(*types.Header))
	})
}

func handlerApplyExtrinsic(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ApplyExtrinsicRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).ApplyExtrinsic(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("ApplyExtrinsic")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).ApplyExtrinsic(ctx, req.(*ApplyExtrinsicRequest))
	})
}

func handlerFinalizeBlock(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(BuilderRef)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).FinalizeBlock(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("FinalizeBlock")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).FinalizeBlock(ctx, req.(*BuilderRef))
	})
}

func handlerMetadata(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).Metadata(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Metadata")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).Metadata(ctx, req.(*Empty))
	})
}

func handlerInherentExtrinsics(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(InherentExtrinsicsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).InherentExtrinsics(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("InherentExtrinsics")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).InherentExtrinsics(ctx, req.(*InherentExtrinsicsRequest))
	})
}

func handlerCheckInherents(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(CheckInherentsRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).CheckInherents(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("CheckInherents")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).CheckInherents(ctx, req.(*CheckInherentsRequest))
	})
}

func handlerRandomSeed(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(AtRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).RandomSeed(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("RandomSeed")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).RandomSeed(ctx, req.(*AtRequest))
	})
}

func handlerValidateTransaction(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(ValidateTransactionRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).ValidateTransaction(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("ValidateTransaction")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).ValidateTransaction(ctx, req.(*ValidateTransactionRequest))
	})
}

func handlerStorage(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(StorageRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).Storage(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Storage")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).Storage(ctx, req.(*StorageRequest))
	})
}

func handlerGenerateSessionKeys(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(BytesMessage)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).GenerateSessionKeys(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("GenerateSessionKeys")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).GenerateSessionKeys(ctx, req.(*BytesMessage))
	})
}

func handlerDecodeSessionKeys(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(BytesMessage)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).DecodeSessionKeys(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("DecodeSessionKeys")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).DecodeSessionKeys(ctx, req.(*BytesMessage))
	})
}

func handlerBabeConfiguration(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(AtRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).BabeConfiguration(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("BabeConfiguration")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).BabeConfiguration(ctx, req.(*AtRequest))
	})
}

func handlerCurrentEpochStart(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(AtRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).CurrentEpochStart(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("CurrentEpochStart")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).CurrentEpochStart(ctx, req.(*AtRequest))
	})
}

func handlerGrandpaAuthorities(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(AtRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).GrandpaAuthorities(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("GrandpaAuthorities")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).GrandpaAuthorities(ctx, req.(*AtRequest))
	})
}

func handlerGenerateKeyOwnershipProof(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(KeyOwnershipProofRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).GenerateKeyOwnershipProof(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("GenerateKeyOwnershipProof")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).GenerateKeyOwnershipProof(ctx, req.(*KeyOwnershipProofRequest))
	})
}

func handlerSubmitEquivocationReport(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(EquivocationReportRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RuntimeServiceServer).SubmitEquivocationReport(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("SubmitEquivocationReport")}
	return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
		return srv.(RuntimeServiceServer).SubmitEquivocationReport(ctx, req.(*EquivocationReportRequest))
	})
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RuntimeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Version", Handler: handlerVersion},
		{MethodName: "Genesis", Handler: handlerGenesis},
		{MethodName: "ExecuteBlock", Handler: handlerExecuteBlock},
		{MethodName: "InitializeBlock", Handler: handlerInitializeBlock},
		{MethodName: "ApplyExtrinsic", Handler: handlerApplyExtrinsic},
		{MethodName: "FinalizeBlock", Handler: handlerFinalizeBlock},
		{MethodName: "Metadata", Handler: handlerMetadata},
		{MethodName: "InherentExtrinsics", Handler: handlerInherentExtrinsics},
		{MethodName: "CheckInherents", Handler: handlerCheckInherents},
		{MethodName: "RandomSeed", Handler: handlerRandomSeed},
		{MethodName: "ValidateTransaction", Handler: handlerValidateTransaction},
		{MethodName: "Storage", Handler: handlerStorage},
		{MethodName: "GenerateSessionKeys", Handler: handlerGenerateSessionKeys},
		{MethodName: "DecodeSessionKeys", Handler: handlerDecodeSessionKeys},
		{MethodName: "BabeConfiguration", Handler: handlerBabeConfiguration},
		{MethodName: "CurrentEpochStart", Handler: handlerCurrentEpochStart},
		{MethodName: "GrandpaAuthorities", Handler: handlerGrandpaAuthorities},
		{MethodName: "GenerateKeyOwnershipProof", Handler: handlerGenerateKeyOwnershipProof},
		{MethodName: "SubmitEquivocationReport", Handler: handlerSubmitEquivocationReport},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "github.com/blockberries/rtcore/v1/service.cram",
}
