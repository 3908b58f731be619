package codec

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message (e.g., func() *structpb.Value { return &structpb.Value{} })
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}
func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}

var structValues = NewProtobuf(func() *structpb.Value { return &structpb.Value{} })

// StructValue encodes generic JSON values as google.protobuf.Value.
// Integers come back as float64, same as encoding/json.
type StructValue struct{}

var _ Codec[any] = StructValue{}

func (StructValue) Encode(v any) ([]byte, error) {
	pv, err := structpb.NewValue(v)
	if err != nil {
		return nil, err
	}
	return structValues.Encode(pv)
}

func (StructValue) Decode(b []byte) (any, error) {
	pv, err := structValues.Decode(b)
	if err != nil {
		return nil, err
	}
	return pv.AsInterface(), nil
}
