package codec

import (
	"encoding/json"
	"errors"
)

var errInvalidJSON = errors.New("codec: invalid JSON document")

// JSON stores documents as their JSON text. Decode validates the bytes so a
// corrupt entry is reported instead of being served.
// The zero value is ready to use.
type JSON struct{}

var _ DocumentCodec = JSON{}

func (JSON) Encode(v json.RawMessage) ([]byte, error) {
	if !json.Valid(v) {
		return nil, errInvalidJSON
	}
	return v, nil
}

func (JSON) Decode(b []byte) (json.RawMessage, error) {
	if !json.Valid(b) {
		return nil, errInvalidJSON
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out, nil
}
