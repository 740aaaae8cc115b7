package transport

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Payload is the raw JSON body of a frame.
type Payload []byte

// EmptyPayload is the JSON object {}.
var EmptyPayload = Payload("{}")

// Get returns the value at path using gjson path syntax.
func (p Payload) Get(path string) gjson.Result {
	return gjson.GetBytes(p, path)
}

// Set returns a copy of p with path assigned to value. A nil payload is
// treated as an empty object.
func (p Payload) Set(path string, value any) (Payload, error) {
	base := []byte(p)
	if len(base) == 0 {
		base = []byte(EmptyPayload)
	}
	out, err := sjson.SetBytes(append([]byte(nil), base...), path, value)
	if err != nil {
		return nil, err
	}
	return Payload(out), nil
}

// String returns the payload as JSON text.
func (p Payload) String() string {
	if len(p) == 0 {
		return string(EmptyPayload)
	}
	return string(p)
}

func (p Payload) normalized() Payload {
	if len(p) == 0 {
		return EmptyPayload
	}
	return p
}

// SetRaw returns a copy of p with path assigned to the raw JSON value.
func (p Payload) SetRaw(path string, raw Payload) (Payload, error) {
	base := []byte(p)
	if len(base) == 0 {
		base = []byte(EmptyPayload)
	}
	out, err := sjson.SetRawBytes(append([]byte(nil), base...), path, raw.normalized())
	if err != nil {
		return nil, err
	}
	return Payload(out), nil
}
