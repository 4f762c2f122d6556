// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/glycerine/idem"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/connectivity"
)

// MinExchangeGap is the idle time the daemon gets between the response to
// one exchange and the next request.
const MinExchangeGap = 250 * time.Millisecond

// Call is one pending method call. Done receives the call exactly once,
// after Result or Error has been set.
type Call struct {
	Method string
	Params []any
	Result any
	Error  error
	Done   chan *Call

	wire  []any
	codec Codec // nil selects the negotiated codec
}

func (c *Call) done() {
	c.Done <- c
}

// Dispatcher sends calls to one daemon, one exchange at a time, in the
// order they were submitted.
type Dispatcher struct {
	desc           ConnectionDescriptor
	transport      Transport
	log            *slog.Logger
	metrics        *Metrics
	requestTimeout time.Duration
	jsonCapable    atomic.Bool
	version        atomic.Pointer[semver.Version]
	warn           rate.Sometimes

	submit  chan *Call
	results chan *Call
	halt    *idem.Halter

	// Owned by run.
	pending      []*Call
	inFlight     bool
	lastResponse time.Time
	closeErr     error
}

// New validates desc, selects its transport and starts the dispatcher.
// Nothing is dialed until the first call.
func New(desc ConnectionDescriptor, opts ...Option) (*Dispatcher, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	desc, err := canonicalize(desc)
	if err != nil {
		return nil, err
	}

	transport := o.transport
	if transport == nil {
		if transport, err = newTransport(desc, o); err != nil {
			return nil, err
		}
	}

	d := &Dispatcher{
		desc:           desc,
		transport:      transport,
		log:            o.logger.With("component", "rtrpc", "connection", desc.Kind()),
		metrics:        o.metrics,
		requestTimeout: o.requestTimeout,
		warn:           rate.Sometimes{First: 3, Interval: 10 * time.Second},
		submit:         make(chan *Call),
		results:        make(chan *Call, 1),
		halt:           idem.NewHalter(),
	}
	if o.jsonCapable && supportsJSON(desc.Kind()) {
		d.jsonCapable.Store(true)
	}

	go d.run()
	return d, nil
}

// Go queues a call and returns immediately. The returned Call's Done
// channel fires once the call has been answered or rejected.
func (d *Dispatcher) Go(method string, params ...any) *Call {
	call := &Call{
		Method: method,
		Params: params,
		Done:   make(chan *Call, 1),
	}
	d.enqueue(call)
	return call
}

// Call queues a call and waits for its result. Cancelling ctx stops the
// wait; a call already queued is still sent.
func (d *Dispatcher) Call(ctx context.Context, method string, params ...any) (any, error) {
	return wait(ctx, d.Go(method, params...))
}

func wait(ctx context.Context, call *Call) (any, error) {
	select {
	case <-call.Done:
		return call.Result, call.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Dispatcher) enqueue(call *Call) {
	if call.Method == "" {
		call.Error = ErrEmptyMethod
		call.done()
		return
	}
	wire, err := normalizeParams(call.Params)
	if err != nil {
		call.Error = fmt.Errorf("%s: %w", call.Method, err)
		call.done()
		return
	}
	call.wire = wire

	select {
	case d.submit <- call:
	case <-d.halt.ReqStop.Chan:
		call.Error = ErrClosed
		call.done()
	}
}

// Close rejects every queued call with ErrClosed, lets the exchange in
// flight finish and closes the transport.
func (d *Dispatcher) Close() error {
	d.halt.ReqStop.Close()
	<-d.halt.Done.Chan
	return d.closeErr
}

// Kind reports the transport the dispatcher was built for.
func (d *Dispatcher) Kind() ConnectionKind {
	return d.desc.Kind()
}

// State reports the transport's connection state.
func (d *Dispatcher) State() connectivity.State {
	return d.transport.State()
}

// JSONCapable reports whether calls are encoded as JSON-RPC.
func (d *Dispatcher) JSONCapable() bool {
	return d.jsonCapable.Load()
}

func (d *Dispatcher) codec() Codec {
	if d.jsonCapable.Load() {
		return JSONCodec{}
	}
	return XMLCodec{}
}

// run owns the queue, the in-flight flag and the response timestamp.
func (d *Dispatcher) run() {
	defer d.halt.Done.Close()

	var throttle <-chan time.Time
	for {
		select {
		case call := <-d.submit:
			d.pending = append(d.pending, call)
			d.metrics.setQueueDepth(len(d.pending))

		case call := <-d.results:
			d.finish(call)

		case <-throttle:
			throttle = nil

		case <-d.halt.ReqStop.Chan:
			d.shutdown()
			return
		}

		if d.inFlight || throttle != nil || len(d.pending) == 0 {
			continue
		}
		if !d.lastResponse.IsZero() {
			if gap := MinExchangeGap - time.Since(d.lastResponse); gap > 0 {
				d.metrics.observeThrottle(gap)
				throttle = time.After(gap)
				continue
			}
		}
		d.dispatchNext()
	}
}

func (d *Dispatcher) dispatchNext() {
	call := d.pending[0]
	d.pending[0] = nil
	d.pending = d.pending[1:]
	d.metrics.setQueueDepth(len(d.pending))

	d.inFlight = true
	go d.exchange(call)
}

func (d *Dispatcher) finish(call *Call) {
	d.inFlight = false
	d.lastResponse = time.Now()
	call.done()
}

func (d *Dispatcher) shutdown() {
	for _, call := range d.pending {
		call.Error = ErrClosed
		call.done()
	}
	d.pending = nil
	d.metrics.setQueueDepth(0)

	if d.inFlight {
		d.finish(<-d.results)
	}
	d.closeErr = d.transport.Close()
	d.log.Debug("dispatcher closed")
}

// exchange performs one round trip and hands the call back to run.
func (d *Dispatcher) exchange(call *Call) {
	start := time.Now()
	call.Result, call.Error = d.roundTrip(call)
	elapsed := time.Since(start)

	d.metrics.observeExchange(d.desc.Kind(), elapsed, call.Error)
	switch outcome(call.Error) {
	case "ok", "fault":
		d.log.Debug("exchange complete",
			"method", call.Method,
			"elapsed", elapsed,
			"err", call.Error,
		)
	default:
		d.warn.Do(func() {
			d.log.Warn("exchange failed",
				"method", call.Method,
				"elapsed", elapsed,
				"err", call.Error,
			)
		})
	}
	d.results <- call
}

func (d *Dispatcher) roundTrip(call *Call) (any, error) {
	codec := call.codec
	if codec == nil {
		codec = d.codec()
	}

	body, err := codec.EncodeCall(call.Method, call.wire)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", call.Method, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.requestTimeout)
	defer cancel()

	raw, err := d.transport.RoundTrip(ctx, body, codec.ContentType())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", call.Method, err)
	}
	result, err := codec.DecodeResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", call.Method, err)
	}
	return result, nil
}
