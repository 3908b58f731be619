package codec

import (
	"encoding/json"
	"strings"
	"testing"
)

const sample = `{"_id":"abc123","title":"Go basics","questions":["q1","q2"],"difficulty":2,"published":true,"category":null}`

func equalJSON(t *testing.T, got, want []byte) {
	t.Helper()
	var a, b any
	if err := json.Unmarshal(got, &a); err != nil {
		t.Fatalf("got is not JSON: %v (%s)", err, got)
	}
	if err := json.Unmarshal(want, &b); err != nil {
		t.Fatalf("want is not JSON: %v", err)
	}
	ga, _ := json.Marshal(a)
	gb, _ := json.Marshal(b)
	if string(ga) != string(gb) {
		t.Fatalf("document mismatch:\n got %s\nwant %s", ga, gb)
	}
}

func TestDocumentCodecsPreserveDocument(t *testing.T) {
	for _, name := range []string{"json", "msgpack", "cbor", "protobuf"} {
		t.Run(name, func(t *testing.T) {
			c, err := ByName(name, 0)
			if err != nil {
				t.Fatalf("ByName(%q): %v", name, err)
			}
			b, err := c.Encode(json.RawMessage(sample))
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			out, err := c.Decode(b)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			equalJSON(t, out, []byte(sample))
		})
	}
}

func TestByNameUnknown(t *testing.T) {
	if _, err := ByName("xml", 0); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}

func TestJSONRejectsGarbage(t *testing.T) {
	if _, err := (JSON{}).Decode([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := (JSON{}).Encode(json.RawMessage("nope")); err == nil {
		t.Fatalf("expected encode error")
	}
}

func TestLimitCodec(t *testing.T) {
	c, err := ByName("json", 16)
	if err != nil {
		t.Fatalf("ByName: %v", err)
	}
	if _, err := c.Decode([]byte(`{"a":1}`)); err != nil {
		t.Fatalf("small payload rejected: %v", err)
	}
	big := []byte(`{"a":"` + strings.Repeat("x", 32) + `"}`)
	if _, err := c.Decode(big); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestStructValueRejectsUnsupported(t *testing.T) {
	if _, err := (StructValue{}).Encode(make(chan int)); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}
