// Package apiconnect binds the Canteen services to Connect handlers and clients.
//
// The layout mirrors protoc-gen-connect-go output: one ServiceName constant,
// one Procedure constant per method, a Client interface with a constructor, and a
// Handler interface with a constructor returning the mount path and http.Handler.
// Every constructor installs api.Codec so messages travel as JSON.
package apiconnect

import (
	"connectrpc.com/connect"

	"github.com/mmynk/canteen/pkg/api"
)

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(api.Codec{})}, opts...)
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(api.Codec{})}, opts...)
}
