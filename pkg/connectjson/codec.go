// Package connectjson provides a connect codec that serializes plain Go
// structs as JSON, so services can be exposed over connect without generated
// protobuf types.
package connectjson

import (
	"bytes"
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

const Name = "json"

var _ connect.Codec = Codec{}

type Codec struct{}

func (Codec) Name() string { return Name }

func (Codec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", msg, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, msg any) error {
	// Empty bodies are valid for requests without fields.
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(msg); err != nil {
		return fmt.Errorf("unmarshal into %T: %w", msg, err)
	}
	return nil
}

// HandlerOption registers the codec on a connect handler.
func HandlerOption() connect.HandlerOption {
	return connect.WithCodec(Codec{})
}

// ClientOption makes a connect client speak JSON.
func ClientOption() connect.ClientOption {
	return connect.WithCodec(Codec{})
}
