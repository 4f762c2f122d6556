// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/connectivity"
)

// probeWindow is how long an idle connection is polled for a pending EOF
// before it is reused.
const probeWindow = time.Millisecond

// socketTransport speaks SCGI over one lazily dialed stream connection
// that is kept for later exchanges while the daemon leaves it open.
type socketTransport struct {
	network string
	address string
	dialer  net.Dialer

	mu sync.Mutex
	// +checklocks:mu
	conn net.Conn
	// +checklocks:mu
	br *bufio.Reader

	state  atomic.Int32
	closed atomic.Bool
}

func newSocketTransport(network, address string, dialTimeout time.Duration) *socketTransport {
	t := &socketTransport{
		network: network,
		address: address,
		dialer:  net.Dialer{Timeout: dialTimeout},
	}
	t.state.Store(int32(connectivity.Idle))
	return t
}

func (t *socketTransport) RoundTrip(ctx context.Context, body []byte, contentType string) ([]byte, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	conn, br, err := t.connLocked(ctx)
	if err != nil {
		return nil, err
	}

	if err := conn.SetDeadline(deadline(ctx)); err != nil {
		t.dropLocked(connectivity.TransientFailure)
		return nil, fmt.Errorf("scgi deadline: %w", err)
	}

	if _, err := conn.Write(encodeSCGI(body, contentType)); err != nil {
		t.dropLocked(connectivity.TransientFailure)
		return nil, fmt.Errorf("scgi write: %w", err)
	}

	resp, keepAlive, err := readSCGIResponse(br)
	if err != nil {
		t.dropLocked(connectivity.TransientFailure)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, fmt.Errorf("scgi read: %w", ctxErr)
		}
		return nil, err
	}

	if !keepAlive {
		t.dropLocked(connectivity.Idle)
		return resp, nil
	}
	_ = conn.SetDeadline(time.Time{})
	return resp, nil
}

// connLocked returns the cached connection if the peer has not closed it,
// dialing a new one otherwise.
func (t *socketTransport) connLocked(ctx context.Context) (net.Conn, *bufio.Reader, error) {
	if t.conn != nil {
		if t.aliveLocked() {
			return t.conn, t.br, nil
		}
		t.dropLocked(connectivity.Idle)
	}

	t.state.Store(int32(connectivity.Connecting))
	conn, err := t.dialer.DialContext(ctx, t.network, t.address)
	if err != nil {
		t.state.Store(int32(connectivity.TransientFailure))
		return nil, nil, fmt.Errorf("scgi dial %s %s: %w", t.network, t.address, err)
	}
	t.conn = conn
	t.br = bufio.NewReader(conn)
	t.state.Store(int32(connectivity.Ready))
	return t.conn, t.br, nil
}

// aliveLocked polls an idle connection. Any EOF, error or unsolicited byte
// means the connection cannot carry another exchange.
func (t *socketTransport) aliveLocked() bool {
	if t.br.Buffered() > 0 {
		return false
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(probeWindow)); err != nil {
		return false
	}
	var one [1]byte
	n, err := t.conn.Read(one[:])
	if n > 0 {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func (t *socketTransport) dropLocked(next connectivity.State) {
	if t.conn != nil {
		_ = t.conn.Close()
	}
	t.conn = nil
	t.br = nil
	t.state.Store(int32(next))
}

func (t *socketTransport) State() connectivity.State {
	if t.closed.Load() {
		return connectivity.Shutdown
	}
	return connectivity.State(t.state.Load())
}

// Close closes the connection
func (t *socketTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var err error
	if t.conn != nil {
		err = t.conn.Close()
	}
	t.conn = nil
	t.br = nil
	return err
}
