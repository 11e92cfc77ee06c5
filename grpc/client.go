package rtgrpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/types"
)

// Compile-time interface check.
var _ rtcore.Connection = (*Client)(nil)

// Client implements rtcore.Connection for a remote runtime over gRPC
// using cramberry serialization. Typed errors (ErrUnsupported,
// *rtcore.BlockError and the server's sentinels) survive the round
// trip.
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to a remote runtime service.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts,
		grpc.WithDefaultCallOptions(grpc.ForceCodec(CramberryCodec{})),
		grpc.WithChainUnaryInterceptor(clientUnaryErrorMapper),
	)
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("rtgrpc: dial %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

// invoke calls method and returns its decoded response.
func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (Resp, error) {
	resp := new(Resp)
	if err := c.cc.Invoke(ctx, fullMethod(method), req, resp); err != nil {
		var zero Resp
		return zero, err
	}
	return *resp, nil
}

// --- Core ---

func (c *Client) Version(ctx context.Context) (types.RuntimeVersion, error) {
	return invoke[types.RuntimeVersion](ctx, c, "Version", &Empty{})
}

func (c *Client) Genesis(ctx context.Context) (types.Header, error) {
	return invoke[types.Header](ctx, c, "Genesis", &Empty{})
}

func (c *Client) ExecuteBlock(ctx context.Context, block types.Block) (types.Header, error) {
	return invoke[types.Header](ctx, c, "ExecuteBlock", &block)
}

// --- Block building ---

func (c *Client) InitializeBlock(ctx context.Context, header types.Header) (rtcore.BuilderID, error) {
	ref, err := invoke[BuilderRef](ctx, c, "InitializeBlock", &header)
	if err != nil {
		return "", err
	}
	return rtcore.BuilderID(ref.ID), nil
}

func (c *Client) ApplyExtrinsic(ctx context.Context, id rtcore.BuilderID, xt types.Extrinsic) (types.ApplyExtrinsicResult, error) {
	return invoke[types.ApplyExtrinsicResult](ctx, c, "ApplyExtrinsic", &ApplyExtrinsicRequest{ID: string(id), Extrinsic: xt})
}

func (c *Client) FinalizeBlock(ctx context.Context, id rtcore.BuilderID) (types.Header, error) {
	return invoke[types.Header](ctx, c, "FinalizeBlock", &BuilderRef{ID: string(id)})
}

// --- Queries ---

func (c *Client) Metadata(ctx context.Context) (types.OpaqueMetadata, error) {
	resp, err := invoke[MetadataResponse](ctx, c, "Metadata", &Empty{})
	return resp.Metadata, err
}

func (c *Client) InherentExtrinsics(ctx context.Context, at types.Hash, data types.InherentData) ([]types.Extrinsic, error) {
	resp, err := invoke[ExtrinsicsResponse](ctx, c, "InherentExtrinsics", &InherentExtrinsicsRequest{At: at, Data: data})
	return resp.Extrinsics, err
}

func (c *Client) CheckInherents(ctx context.Context, at types.Hash, block types.Block, data types.InherentData) (types.CheckInherentsResult, error) {
	return invoke[types.CheckInherentsResult](ctx, c, "CheckInherents", &CheckInherentsRequest{At: at, Block: block, Data: data})
}

func (c *Client) RandomSeed(ctx context.Context, at types.Hash) (types.Hash, error) {
	resp, err := invoke[HashResponse](ctx, c, "RandomSeed", &AtRequest{At: at})
	return resp.Hash, err
}

func (c *Client) ValidateTransaction(ctx context.Context, at types.Hash, source types.TransactionSource, xt types.Extrinsic) (types.TransactionValidity, error) {
	return invoke[types.TransactionValidity](ctx, c, "ValidateTransaction", &ValidateTransactionRequest{At: at, Source: source, Extrinsic: xt})
}

func (c *Client) Storage(ctx context.Context, at types.Hash, key []byte) ([]byte, error) {
	resp, err := invoke[BytesMessage](ctx, c, "Storage", &StorageRequest{At: at, Key: key})
	if len(resp.Data) == 0 {
		return nil, err
	}
	return resp.Data, err
}

// --- Optional capabilities ---

func (c *Client) GenerateSessionKeys(ctx context.Context, seed []byte) ([]byte, error) {
	resp, err := invoke[BytesMessage](ctx, c, "GenerateSessionKeys", &BytesMessage{Data: seed})
	return resp.Data, err
}

func (c *Client) DecodeSessionKeys(ctx context.Context, encoded []byte) ([]types.SessionKey, error) {
	resp, err := invoke[SessionKeysResponse](ctx, c, "DecodeSessionKeys", &BytesMessage{Data: encoded})
	return resp.Keys, err
}

func (c *Client) BabeConfiguration(ctx context.Context, at types.Hash) (types.EpochConfiguration, error) {
	return invoke[types.EpochConfiguration](ctx, c, "BabeConfiguration", &AtRequest{At: at})
}

func (c *Client) CurrentEpochStart(ctx context.Context, at types.Hash) (types.Slot, error) {
	resp, err := invoke[SlotResponse](ctx, c, "CurrentEpochStart", &AtRequest{At: at})
	return resp.Slot, err
}

func (c *Client) GrandpaAuthorities(ctx context.Context, at types.Hash) (types.AuthoritySet, error) {
	return invoke[types.AuthoritySet](ctx, c, "GrandpaAuthorities", &AtRequest{At: at})
}

func (c *Client) GenerateKeyOwnershipProof(ctx context.Context, at types.Hash, engine types.ConsensusEngineID, slotOrSet uint64, authority types.AuthorityID) (types.KeyOwnershipProof, error) {
	resp, err := invoke[KeyOwnershipProofResponse](ctx, c, "GenerateKeyOwnershipProof", &KeyOwnershipProofRequest{
		At:        at,
		Engine:    engine,
		SlotOrSet: slotOrSet,
		Authority: authority,
	})
	return resp.Proof, err
}

func (c *Client) SubmitEquivocationReport(ctx context.Context, at types.Hash, engine types.ConsensusEngineID, proof types.EquivocationProof, owner types.KeyOwnershipProof) (types.Extrinsic, error) {
	return invoke[types.Extrinsic](ctx, c, "SubmitEquivocationReport", &EquivocationReportRequest{
		At:     at,
		Engine: engine,
		Proof:  proof,
		Owner:  owner,
	})
}
