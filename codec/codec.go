package codec

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// DocumentCodec is the codec the cache stores JSON documents with.
type DocumentCodec = Codec[json.RawMessage]

// ByName returns the document codec registered under name
// ("json", "msgpack", "cbor", "protobuf"). An empty name selects "json".
// maxDecode > 0 wraps the codec in a LimitCodec.
func ByName(name string, maxDecode int) (DocumentCodec, error) {
	var c DocumentCodec
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		c = JSON{}
	case "msgpack":
		c = Document(Msgpack[any]{})
	case "cbor":
		cb, err := NewCBOR[any](false)
		if err != nil {
			return nil, err
		}
		c = Document(cb)
	case "protobuf", "proto":
		c = Document(StructValue{})
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
	if maxDecode > 0 {
		c = LimitCodec[json.RawMessage]{Inner: c, MaxDecode: maxDecode}
	}
	return c, nil
}
