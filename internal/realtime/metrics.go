package realtime

import (
	"time"

	"github.com/bissquit/statusroom/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	publishResultSuccess = "success"
	publishResultError   = "error"
)

var (
	connectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Number of open websocket connections",
		},
	)

	roomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "realtime",
			Name:      "rooms",
			Help:      "Number of organization rooms with at least one connection",
		},
	)

	snapshotPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "realtime",
			Name:      "publishes_total",
			Help:      "Total snapshot publishes by result",
		},
		[]string{"result"},
	)

	snapshotPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "realtime",
			Name:      "publish_duration_seconds",
			Help:      "Time to read and fan out a snapshot",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	connectionsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "realtime",
			Name:      "dropped_total",
			Help:      "Total connections removed from a room by reason",
		},
		[]string{"reason"},
	)
)

func recordPublish(result string, duration time.Duration) {
	snapshotPublishes.WithLabelValues(result).Inc()
	snapshotPublishDuration.Observe(duration.Seconds())
}

func recordDropped(reason string) {
	connectionsDropped.WithLabelValues(reason).Inc()
}
