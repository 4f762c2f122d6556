// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/grpc/connectivity"
)

// Transport carries one encoded request to the daemon and returns the raw
// response body. A dispatcher never calls RoundTrip concurrently.
type Transport interface {
	io.Closer
	RoundTrip(ctx context.Context, body []byte, contentType string) ([]byte, error)
	State() connectivity.State
}

// newTransport selects the strategy for desc. desc must already be
// canonicalized.
func newTransport(desc ConnectionDescriptor, o *options) (Transport, error) {
	switch d := desc.(type) {
	case RPCSettings:
		if o.httpClient != nil {
			return newHTTPTransport(d, o.httpClient, false), nil
		}
		return newHTTPTransport(d, &http.Client{Timeout: o.requestTimeout}, true), nil
	case TCPSettings:
		return newSocketTransport("tcp", d.Addr(), o.dialTimeout), nil
	case SocketSettings:
		return newSocketTransport("unix", d.Path, o.dialTimeout), nil
	default:
		return nil, fmt.Errorf("%w: unsupported connection %T", ErrInvalidSettings, desc)
	}
}

// supportsJSON reports whether the transport may carry JSON-RPC. The HTTP
// endpoint only forwards XML-RPC.
func supportsJSON(kind ConnectionKind) bool {
	switch kind {
	case KindTCP, KindSocket:
		return true
	default:
		return false
	}
}

// deadline returns ctx's deadline, or the zero time meaning none.
func deadline(ctx context.Context) time.Time {
	d, _ := ctx.Deadline()
	return d
}
