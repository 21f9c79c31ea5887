package operatorpool

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const jsonCodecName = "json"

// jsonCodec lets this package call operator RPCs without depending on
// generated protobuf stubs for the operator protocol (explicitly out of
// scope per spec section 1 — "treated as a remote service with a defined
// RPC surface"). Registered globally under the "json" content-subtype so
// grpc.CallContentSubtype("json") picks it up on every call this package
// makes.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
