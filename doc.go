// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rtrpc drives an rTorrent daemon's control protocol over whichever
// transport the daemon exposes, behind one asynchronous call interface.
//
// # Transport Selection
//
// A ConnectionDescriptor picks exactly one transport for the lifetime of a
// Dispatcher:
//
//	RPCSettings{URL, Username, Password}  # XML-RPC POSTed to an HTTP gateway
//	TCPSettings{Host, Port}               # SCGI over TCP
//	SocketSettings{Path}                  # SCGI over a unix socket
//
// Socket paths are sanitized before use: "~" is expanded, control
// characters are stripped and the path is made absolute.
//
// # Usage
//
//	d, err := rtrpc.New(rtrpc.TCPSettings{Host: "localhost", Port: 5000})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//
//	// Optional: switch to JSON-RPC if the daemon speaks it
//	caps, err := d.DetectCapabilities(ctx)
//
//	// Blocking call
//	name, err := d.Call(ctx, "system.hostname")
//
//	// Asynchronous call
//	call := d.Go("d.multicall2", "", "main", "d.hash=", "d.name=")
//	<-call.Done
//
// # Ordering and Throttling
//
// A Dispatcher keeps at most one exchange in flight. Calls made while one
// is in flight are queued and sent in the order they were made, and every
// exchange starts at least MinExchangeGap (250ms) after the previous
// response arrived. A failed exchange occupies its turn like any other.
// There are no retries.
//
// # Architecture
//
//   - settings.go: ConnectionDescriptor and the stored settings format
//   - dispatcher.go: queue, throttle and Call futures
//   - transport.go: Transport interface and strategy selection
//   - http.go, conn.go, scgi.go: HTTP and SCGI transports
//   - codec.go, json.go, xml.go: JSON-RPC and XML-RPC codecs
//   - capability.go: JSON-RPC and version detection
package rtrpc
