package codec

import "encoding/json"

// Document adapts a codec over generic JSON values (maps, slices, float64,
// string, bool, nil) into a DocumentCodec. The document is parsed before
// Encode and re-rendered as JSON after Decode.
func Document(inner Codec[any]) DocumentCodec {
	return document{inner: inner}
}

type document struct {
	inner Codec[any]
}

func (d document) Encode(raw json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return d.inner.Encode(v)
}

func (d document) Decode(b []byte) (json.RawMessage, error) {
	v, err := d.inner.Decode(b)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
