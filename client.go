// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"log/slog"
	"net/http"
	"time"
)

// Defaults for exchanges whose caller supplied no options.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultDialTimeout    = 10 * time.Second
)

// Option configures a Dispatcher
type Option func(*options)

type options struct {
	logger         *slog.Logger
	metrics        *Metrics
	requestTimeout time.Duration
	dialTimeout    time.Duration
	httpClient     *http.Client
	transport      Transport
	jsonCapable    bool
}

func defaultOptions() *options {
	return &options{
		logger:         slog.Default(),
		requestTimeout: DefaultRequestTimeout,
		dialTimeout:    DefaultDialTimeout,
	}
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records exchange metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRequestTimeout bounds each exchange, including connection setup.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithDialTimeout bounds establishing a socket connection.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.dialTimeout = d
		}
	}
}

// WithHTTPClient sets the client used by RPC connections.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTransport replaces the transport the descriptor would select. The
// descriptor is still validated and still decides codec eligibility.
func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithJSONCapable marks the daemon as JSON-RPC capable without probing.
// It has no effect on RPC connections.
func WithJSONCapable() Option {
	return func(o *options) { o.jsonCapable = true }
}
