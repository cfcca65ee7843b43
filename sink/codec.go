package sink

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/arloliu/opcsub/types"
)

// Codec encodes notifications into message payloads.
type Codec interface {
	// Encode serializes a notification.
	Encode(n types.Notification) ([]byte, error)

	// Decode deserializes a payload produced by Encode.
	Decode(data []byte, n *types.Notification) error

	// ContentType is published in the Content-Type message header.
	ContentType() string
}

// CBORCodec encodes notifications as CBOR with RFC 3339 timestamps.
type CBORCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORCodec creates the default codec.
func NewCBORCodec() *CBORCodec {
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("sink: invalid cbor encoding options: %v", err))
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("sink: invalid cbor decoding options: %v", err))
	}

	return &CBORCodec{enc: enc, dec: dec}
}

func (c *CBORCodec) Encode(n types.Notification) ([]byte, error) {
	return c.enc.Marshal(n)
}

func (c *CBORCodec) Decode(data []byte, n *types.Notification) error {
	return c.dec.Unmarshal(data, n)
}

func (c *CBORCodec) ContentType() string {
	return "application/cbor"
}

// JSONCodec encodes notifications as JSON.
type JSONCodec struct{}

// NewJSONCodec creates a JSON codec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

func (JSONCodec) Encode(n types.Notification) ([]byte, error) {
	return json.Marshal(n)
}

func (JSONCodec) Decode(data []byte, n *types.Notification) error {
	return json.Unmarshal(data, n)
}

func (JSONCodec) ContentType() string {
	return "application/json"
}
