// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package rtrpc

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "rtrpc"

// Metrics holds the dispatcher collectors. A nil *Metrics records nothing.
type Metrics struct {
	queueDepth   prometheus.Gauge
	exchanges    *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	throttleWait prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg. Collectors
// already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "queue_depth",
			Help:      "Calls waiting for their turn to be sent to the daemon.",
		}),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "exchanges_total",
			Help:      "Completed daemon exchanges by transport and outcome.",
		}, []string{"transport", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "exchange_duration_seconds",
			Help:      "Time from send to decoded response.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport"}),
		throttleWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "throttle_wait_seconds",
			Help:      "Delay inserted before a dispatch to honor the minimum exchange gap.",
			Buckets:   prometheus.LinearBuckets(0.025, 0.025, 10),
		}),
	}

	var err error
	if m.queueDepth, err = register(reg, m.queueDepth); err != nil {
		return nil, err
	}
	if m.exchanges, err = register(reg, m.exchanges); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.throttleWait, err = register(reg, m.throttleWait); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) observeExchange(kind ConnectionKind, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(string(kind), outcome(err)).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

func (m *Metrics) observeThrottle(wait time.Duration) {
	if m == nil {
		return
	}
	m.throttleWait.Observe(wait.Seconds())
}
