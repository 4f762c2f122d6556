// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"google.golang.org/grpc/connectivity"
)

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// httpTransport POSTs each request to an XML-RPC gateway in front of the
// daemon.
type httpTransport struct {
	url      string
	username string
	password string
	client   *http.Client
	// ownsClient is set when client was built here and may be shut down
	// by Close.
	ownsClient bool

	state  atomic.Int32
	closed atomic.Bool
}

func newHTTPTransport(s RPCSettings, client *http.Client, ownsClient bool) *httpTransport {
	t := &httpTransport{
		url:        s.URL,
		username:   s.Username,
		password:   s.Password,
		client:     client,
		ownsClient: ownsClient,
	}
	t.state.Store(int32(connectivity.Idle))
	return t
}

func (t *httpTransport) RoundTrip(ctx context.Context, body []byte, contentType string) ([]byte, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", contentType)
	if t.username != "" {
		request.SetBasicAuth(t.username, t.password)
	}

	resp, err := t.client.Do(request)
	if err != nil {
		t.state.Store(int32(connectivity.TransientFailure))
		return nil, fmt.Errorf("failed to issue request: %w", err)
	}
	defer CleanlyCloseBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.state.Store(int32(connectivity.TransientFailure))
		return nil, fmt.Errorf("received status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		t.state.Store(int32(connectivity.TransientFailure))
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(data) > maxResponseSize {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrMalformedResponse, maxResponseSize)
	}
	t.state.Store(int32(connectivity.Ready))
	return data, nil
}

func (t *httpTransport) State() connectivity.State {
	if t.closed.Load() {
		return connectivity.Shutdown
	}
	return connectivity.State(t.state.Load())
}

func (t *httpTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if t.ownsClient {
		t.client.CloseIdleConnections()
	}
	return nil
}
