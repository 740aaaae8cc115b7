package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

const (
	topicPhoenix   = "phoenix"
	eventJoin      = "phx_join"
	eventLeave     = "phx_leave"
	eventReply     = "phx_reply"
	eventError     = "phx_error"
	eventClose     = "phx_close"
	eventHeartbeat = "heartbeat"
)

const (
	// VersionV1 is the object-framed protocol.
	VersionV1 = "1.0.0"
	// VersionV2 is the array-framed protocol used by current servers.
	VersionV2 = "2.0.0"
)

var errMalformedFrame = errors.New("malformed frame")

// Message is one protocol frame in either direction.
type Message struct {
	JoinRef string
	Ref     string
	Topic   string
	Event   string
	Payload Payload
}

// Serializer converts messages to and from websocket text frames.
type Serializer interface {
	Version() string
	Encode(msg Message) ([]byte, error)
	Decode(data []byte) (Message, error)
}

// SerializerFor returns the serializer for a protocol version. An empty
// version selects VersionV2.
func SerializerFor(vsn string) (Serializer, error) {
	switch vsn {
	case "", VersionV2:
		return v2Serializer{}, nil
	case VersionV1:
		return v1Serializer{}, nil
	default:
		return nil, fmt.Errorf("unsupported protocol version %q", vsn)
	}
}

type v2Serializer struct{}

func (v2Serializer) Version() string { return VersionV2 }

func (v2Serializer) Encode(msg Message) ([]byte, error) {
	frame := []any{
		nullableRef(msg.JoinRef),
		nullableRef(msg.Ref),
		msg.Topic,
		msg.Event,
		json.RawMessage(msg.Payload.normalized()),
	}
	return json.Marshal(frame)
}

func (v2Serializer) Decode(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return Message{}, fmt.Errorf("%w: invalid json", errMalformedFrame)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return Message{}, fmt.Errorf("%w: expected array", errMalformedFrame)
	}
	parts := root.Array()
	if len(parts) != 5 {
		return Message{}, fmt.Errorf("%w: expected 5 elements, got %d", errMalformedFrame, len(parts))
	}
	return Message{
		JoinRef: parts[0].String(),
		Ref:     parts[1].String(),
		Topic:   parts[2].String(),
		Event:   parts[3].String(),
		Payload: payloadOf(parts[4]),
	}, nil
}

type v1Serializer struct{}

type v1Frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     *string         `json:"ref"`
	JoinRef *string         `json:"join_ref"`
}

func (v1Serializer) Version() string { return VersionV1 }

func (v1Serializer) Encode(msg Message) ([]byte, error) {
	frame := v1Frame{
		Topic:   msg.Topic,
		Event:   msg.Event,
		Payload: json.RawMessage(msg.Payload.normalized()),
	}
	if msg.Ref != "" {
		ref := msg.Ref
		frame.Ref = &ref
	}
	if msg.JoinRef != "" {
		joinRef := msg.JoinRef
		frame.JoinRef = &joinRef
	}
	return json.Marshal(frame)
}

func (v1Serializer) Decode(data []byte) (Message, error) {
	if !gjson.ValidBytes(data) {
		return Message{}, fmt.Errorf("%w: invalid json", errMalformedFrame)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Message{}, fmt.Errorf("%w: expected object", errMalformedFrame)
	}
	topic := root.Get("topic")
	event := root.Get("event")
	if !topic.Exists() || !event.Exists() {
		return Message{}, fmt.Errorf("%w: missing topic or event", errMalformedFrame)
	}
	return Message{
		JoinRef: root.Get("join_ref").String(),
		Ref:     root.Get("ref").String(),
		Topic:   topic.String(),
		Event:   event.String(),
		Payload: payloadOf(root.Get("payload")),
	}, nil
}

func nullableRef(ref string) any {
	if ref == "" {
		return nil
	}
	return ref
}

func payloadOf(value gjson.Result) Payload {
	if !value.Exists() || value.Type == gjson.Null {
		return EmptyPayload
	}
	return Payload(value.Raw)
}
