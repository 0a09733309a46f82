package wire

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Codec serializes envelopes for one wire encoding. The encoding is
// negotiated at dial time through websocket subprotocols; JSON is the
// preferred encoding and CBOR the fallback.
type Codec interface {
	// Subprotocol returns the websocket subprotocol name advertised
	// for this encoding.
	Subprotocol() string

	// Binary reports whether frames use the binary websocket opcode.
	Binary() bool

	// EncodeEnvelope wraps an event name and payload into one frame.
	EncodeEnvelope(event string, payload any) ([]byte, error)

	// DecodeEnvelope splits a frame into its event name and the raw
	// payload bytes, still in this codec's encoding.
	DecodeEnvelope(data []byte) (event string, payload []byte, err error)

	// Unmarshal decodes raw payload bytes into v.
	Unmarshal(data []byte, v any) error
}

// Subprotocol names.
const (
	SubprotocolJSON = "ragline.json"
	SubprotocolCBOR = "ragline.cbor"
)

// JSON is the preferred wire codec.
var JSON Codec = jsonCodec{}

// CBOR is the fallback wire codec.
var CBOR Codec = cborCodec{}

// Codecs returns the supported codecs in preference order.
func Codecs() []Codec {
	return []Codec{JSON, CBOR}
}

// BySubprotocol resolves a negotiated subprotocol to its codec.
func BySubprotocol(name string) (Codec, bool) {
	switch name {
	case SubprotocolJSON:
		return JSON, true
	case SubprotocolCBOR:
		return CBOR, true
	}
	return nil, false
}

type jsonEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type jsonCodec struct{}

func (jsonCodec) Subprotocol() string { return SubprotocolJSON }
func (jsonCodec) Binary() bool        { return false }

func (jsonCodec) EncodeEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	return json.Marshal(jsonEnvelope{Event: event, Data: data})
}

func (jsonCodec) DecodeEnvelope(data []byte) (string, []byte, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Event == "" {
		return "", nil, fmt.Errorf("envelope missing event name")
	}
	return env.Event, env.Data, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

type cborEnvelope struct {
	Event string          `cbor:"event"`
	Data  cbor.RawMessage `cbor:"data,omitempty"`
}

type cborCodec struct{}

func (cborCodec) Subprotocol() string { return SubprotocolCBOR }
func (cborCodec) Binary() bool        { return true }

func (cborCodec) EncodeEnvelope(event string, payload any) ([]byte, error) {
	data, err := cbor.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	return cbor.Marshal(cborEnvelope{Event: event, Data: data})
}

func (cborCodec) DecodeEnvelope(data []byte) (string, []byte, error) {
	var env cborEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Event == "" {
		return "", nil, fmt.Errorf("envelope missing event name")
	}
	return env.Event, env.Data, nil
}

func (cborCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return cbor.Unmarshal(data, v)
}
