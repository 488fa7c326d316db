// Package transport implements the gossip exchange RPC over gRPC. The
// service uses the hand-marshaled wire messages from membership/proto, so
// instead of generated stubs it carries its own codec and service
// descriptor; the wire bytes and the RPC surface are identical to what
// generated code would produce.
package transport

import (
	"fmt"

	"google.golang.org/grpc/encoding"

	"github.com/plenum-go/plenum/membership/proto"
)

// CodecName is the gRPC content subtype under which the wire codec is
// registered. Both ends of an exchange must use it.
const CodecName = "plenum"

func init() {
	encoding.RegisterCodec(wireCodec{})
}

type wireCodec struct{}

func (wireCodec) Name() string {
	return CodecName
}

func (wireCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("unsupported message type %T", v)
	}

	return msg.MarshalWire()
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("unsupported message type %T", v)
	}

	return msg.UnmarshalWire(data)
}
