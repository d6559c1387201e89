// Package api defines the wire messages of the Canteen Connect services.
//
// Messages are plain Go structs encoded as JSON. Codec replaces Connect's default
// "json" codec so handlers and clients can use them without generated protobuf
// types; well-known protobuf messages (emptypb.Empty) still go through protojson.
package api

import (
	"encoding/json"
	"errors"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// CodecName is registered with Connect; it is also the content subtype on the wire.
const CodecName = "json"

// Codec marshals API messages as JSON.
type Codec struct{}

var _ connect.Codec = Codec{}

// Name implements connect.Codec.
func (Codec) Name() string { return CodecName }

// Marshal implements connect.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	return json.Marshal(v)
}

// Unmarshal implements connect.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		if len(data) == 0 {
			return nil
		}
		return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, m)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// ErrorKindHeader carries the named error kind of a failed call, e.g.
// "InsufficientFunds" or "AlreadyResolved".
const ErrorKindHeader = "Canteen-Error-Kind"

// ErrorKind extracts the named error kind from an error returned by a client.
// It returns "" for nil or non-Connect errors.
func ErrorKind(err error) string {
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr.Meta().Get(ErrorKindHeader)
	}
	return ""
}
