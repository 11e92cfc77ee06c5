package rtgrpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/server"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

const errorTypeURL = "rtcore/error"

// Error kinds carried across the wire.
const (
	kindUnsupported    = "unsupported"
	kindUnknownBuilder = "unknown_builder"
	kindUnknownBlock   = "unknown_block"
	kindNoGenesis      = "no_genesis"
	kindInvalidBlock   = "invalid_block"
)

// wireError is the status detail that lets the client rebuild a typed
// error.
type wireError struct {
	Kind   string            `cramberry:"1"`
	Number types.BlockNumber `cramberry:"2"`
	Reason string            `cramberry:"3"`
	Cause  string            `cramberry:"4"`
}

// IsErrorCode reports whether err carries the given gRPC status code.
func IsErrorCode(err error, code codes.Code) bool {
	var grpcError interface {
		error
		GRPCStatus() *status.Status
	}
	if !errors.As(err, &grpcError) {
		return false
	}
	return grpcError.GRPCStatus().Code() == code
}

func errorToGrpc(err error) error {
	if err == nil {
		return nil
	}
	var (
		we   wireError
		code codes.Code
	)
	switch {
	case errors.Is(err, rtcore.ErrUnsupported):
		we.Kind, code = kindUnsupported, codes.Unimplemented
	case errors.Is(err, server.ErrUnknownBuilder):
		we.Kind, code = kindUnknownBuilder, codes.NotFound
	case errors.Is(err, storage.ErrUnknownBlock):
		we.Kind, code = kindUnknownBlock, codes.NotFound
	case errors.Is(err, server.ErrNoGenesis):
		we.Kind, code = kindNoGenesis, codes.FailedPrecondition
	default:
		if be, ok := rtcore.IsBlockError(err); ok {
			we = wireError{Kind: kindInvalidBlock, Number: be.Number, Reason: be.Reason}
			if be.Err != nil {
				we.Cause = be.Err.Error()
			}
			code = codes.InvalidArgument
			break
		}
		if _, ok := status.FromError(err); ok {
			return err
		}
		return status.Error(codes.Internal, err.Error())
	}

	detail, merr := cramberry.Marshal(&we)
	if merr != nil {
		return status.Error(code, err.Error())
	}
	return status.FromProto(&spb.Status{
		Code:    int32(code),
		Message: err.Error(),
		Details: []*anypb.Any{{TypeUrl: errorTypeURL, Value: detail}},
	}).Err()
}

func errorFromGrpc(err error) error {
	if err == nil {
		return nil
	}
	s, ok := status.FromError(err)
	if !ok {
		return err
	}
	sp := s.Proto()
	if len(sp.Details) != 1 || sp.Details[0].GetTypeUrl() != errorTypeURL {
		return err
	}
	var we wireError
	if cramberry.Unmarshal(sp.Details[0].GetValue(), &we) != nil {
		return err
	}

	switch we.Kind {
	case kindUnsupported:
		return fmt.Errorf("%w: %s", rtcore.ErrUnsupported, s.Message())
	case kindUnknownBuilder:
		return fmt.Errorf("%w: %s", server.ErrUnknownBuilder, s.Message())
	case kindUnknownBlock:
		return fmt.Errorf("%w: %s", storage.ErrUnknownBlock, s.Message())
	case kindNoGenesis:
		return server.ErrNoGenesis
	case kindInvalidBlock:
		var cause error
		if we.Cause != "" {
			cause = errors.New(we.Cause)
		}
		return rtcore.NewBlockError(we.Number, we.Reason, cause)
	default:
		return err
	}
}

func serverUnaryErrorMapper(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	return resp, errorToGrpc(err)
}

func clientUnaryErrorMapper(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	return errorFromGrpc(invoker(ctx, method, req, reply, cc, opts...))
}
