package orcapb

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered under "proto", the content-subtype name
// grpc-go's wire framing already reserves, so the real streaming,
// multiplexing, and deadline machinery of grpc-go works unmodified
// while this module's messages marshal with encoding/json instead of
// protoc-generated protobuf (SPEC_FULL.md §4.3 "Transport" — protoc
// cannot run in this build, see DESIGN.md for the trade-off).
const jsonCodecName = "proto"

// jsonCodec implements google.golang.org/grpc/encoding.Codec over
// encoding/json.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("orcapb: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("orcapb: unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string { return jsonCodecName }

// RegisterCodec installs the JSON codec as grpc-go's "proto" content
// subtype. Call once from cmd/orca before dialing or serving; grpc-go
// looks the codec up by name on every call, so this must run before any
// RPC.
func RegisterCodec() {
	encoding.RegisterCodec(jsonCodec{})
}
