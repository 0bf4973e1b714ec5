package archive

import (
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
)

// CodecName is the gRPC content-subtype under which archive messages travel
// ("application/grpc+archive"). Clients opt in per call, servers pick the codec
// from the request content-type.
const CodecName = "archive"

// Codec encodes archive messages with their hand-written wire format and any
// other protobuf message (health checks) with the regular proto runtime.
// Servers force it with grpc.ForceServerCodec so that clients generated from
// inject.proto, which send plain "application/grpc", are understood too.
var Codec encoding.Codec = codec{}

type codec struct{}

func init() {
	encoding.RegisterCodec(codec{})
}

func (codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case Message:
		return Marshal(m), nil
	case proto.Message:
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("archive codec: cannot marshal %T", v)
}

func (codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case Message:
		return Unmarshal(data, m)
	case proto.Message:
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("archive codec: cannot unmarshal into %T", v)
}

func (codec) Name() string {
	return CodecName
}
