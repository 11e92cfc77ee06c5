// Package rtgrpc serves a runtime connection over gRPC and dials it
// back as an rtcore.Connection.
//
// There is no protobuf schema. Request and response messages are plain
// structs with cramberry tags, encoded with the same codec the runtime
// uses for its own state and extrinsics.
package rtgrpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"

	"github.com/blockberries/rtcore/types"
)

// CodecName is the content-subtype clients must request.
const CodecName = "cramberry"

// CramberryCodec is the grpc/encoding.Codec of the runtime service.
type CramberryCodec struct{}

func (CramberryCodec) Marshal(v any) ([]byte, error) {
	data, err := types.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("rtgrpc: encode %T: %w", v, err)
	}
	return data, nil
}

func (CramberryCodec) Unmarshal(data []byte, v any) error {
	if err := types.Decode(data, v); err != nil {
		return fmt.Errorf("rtgrpc: decode %T: %w", v, err)
	}
	return nil
}

func (CramberryCodec) Name() string { return CodecName }

func init() {
	encoding.RegisterCodec(CramberryCodec{})
}
