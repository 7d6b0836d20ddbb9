package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests     *prometheus.CounterVec
	payloadBytes *prometheus.HistogramVec
	duration     *prometheus.HistogramVec
	clients      prometheus.GaugeFunc
	evictions    *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, clients func() float64) *metrics {
	f := promauto.With(reg)
	return &metrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gsp",
			Subsystem: "sync",
			Name:      "requests_total",
			Help:      "Render requests by payload type and response code.",
		}, []string{"type", "code"}),
		payloadBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gsp",
			Subsystem: "sync",
			Name:      "payload_bytes",
			Help:      "Size of payload data by payload type.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10), // 64B to 16MiB
		}, []string{"type"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gsp",
			Subsystem: "sync",
			Name:      "request_duration_seconds",
			Help:      "Render request latency by payload type.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"type"}),
		clients: f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "gsp",
			Subsystem: "sync",
			Name:      "clients",
			Help:      "Number of clients with a cached scene.",
		}, clients),
		evictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gsp",
			Subsystem: "sync",
			Name:      "evictions_total",
			Help:      "Evicted client entries by reason.",
		}, []string{"reason"}),
	}
}
