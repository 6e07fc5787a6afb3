// Package prometheus implements internal/metrics.Recorder with
// github.com/prometheus/client_golang, registered against a caller-owned
// prometheus.Registerer so the engine can be embedded alongside other
// instrumented components without fighting over the default registry.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type recorder struct {
	callDuration        *prometheus.HistogramVec
	bytesTransferred    *prometheus.CounterVec
	activeConnections   prometheus.Gauge
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
	connectionsForced   prometheus.Counter
	mounts              *prometheus.CounterVec
}

// New registers the engine's metrics against reg and returns a Recorder.
// reg is a caller-owned registerer, such as a fresh
// prometheus.NewRegistry().
func New(reg prometheus.Registerer) *recorder {
	f := promauto.With(reg)
	return &recorder{
		callDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nfsd_call_duration_seconds",
			Help:    "RPC call duration by procedure and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"procedure", "status"}),
		bytesTransferred: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nfsd_bytes_transferred_total",
			Help: "Bytes moved by READ and WRITE calls.",
		}, []string{"direction"}),
		activeConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "nfsd_active_connections",
			Help: "Currently accepted TCP connections.",
		}),
		connectionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "nfsd_connections_accepted_total",
			Help: "Total TCP connections accepted.",
		}),
		connectionsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "nfsd_connections_closed_total",
			Help: "Total TCP connections closed normally.",
		}),
		connectionsForced: f.NewCounter(prometheus.CounterOpts{
			Name: "nfsd_connections_force_closed_total",
			Help: "Total TCP connections force-closed after a shutdown timeout.",
		}),
		mounts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nfsd_mounts_total",
			Help: "Total MNT/UMNT/UMNTALL events by direction.",
		}, []string{"mounted"}),
	}
}

func (r *recorder) RecordCall(procedure string, duration time.Duration, status string) {
	r.callDuration.WithLabelValues(procedure, status).Observe(duration.Seconds())
}

func (r *recorder) RecordBytes(direction string, bytes uint64) {
	r.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (r *recorder) SetActiveConnections(count int32) { r.activeConnections.Set(float64(count)) }
func (r *recorder) RecordConnectionAccepted()         { r.connectionsAccepted.Inc() }
func (r *recorder) RecordConnectionClosed()           { r.connectionsClosed.Inc() }
func (r *recorder) RecordConnectionForceClosed()      { r.connectionsForced.Inc() }

func (r *recorder) RecordMount(mounted bool) {
	label := "unmount"
	if mounted {
		label = "mount"
	}
	r.mounts.WithLabelValues(label).Inc()
}
