package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "framenotify",
		Subsystem: "acquisition",
		Name:      "frames_received_total",
		Help:      "Frames delivered by the camera callback",
	}, []string{"camera"})

	framesForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "framenotify",
		Subsystem: "acquisition",
		Name:      "frames_forwarded_total",
		Help:      "Frames handed to the host pipeline",
	}, []string{"camera"})

	framesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "framenotify",
		Subsystem: "acquisition",
		Name:      "frames_dropped_total",
		Help:      "Frames evicted from the notification queue on overflow",
	}, []string{"camera"})

	forwardFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "framenotify",
		Subsystem: "acquisition",
		Name:      "forward_failures_total",
		Help:      "Forward calls that returned an error or panicked",
	}, []string{"camera"})

	sequencesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "framenotify",
		Subsystem: "acquisition",
		Name:      "sequences_total",
		Help:      "Acquisition sequences started",
	}, []string{"camera"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "framenotify",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Notifications waiting to be forwarded",
	}, []string{"camera"})

	queueCapacity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "framenotify",
		Subsystem: "queue",
		Name:      "capacity",
		Help:      "Notification queue capacity for the current sequence",
	}, []string{"camera"})

	forwardDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "framenotify",
		Subsystem: "acquisition",
		Name:      "forward_duration_seconds",
		Help:      "Time spent in the host pipeline forward call",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"camera"})
)

// Camera holds the metric children for one camera so the frame path does not
// pay for label lookups.
type Camera struct {
	Received        prometheus.Counter
	Forwarded       prometheus.Counter
	Dropped         prometheus.Counter
	Failures        prometheus.Counter
	Sequences       prometheus.Counter
	QueueDepth      prometheus.Gauge
	QueueCapacity   prometheus.Gauge
	ForwardDuration prometheus.Observer
}

// ForCamera returns the metric set for a camera.
func ForCamera(camera string) *Camera {
	return &Camera{
		Received:        framesReceived.WithLabelValues(camera),
		Forwarded:       framesForwarded.WithLabelValues(camera),
		Dropped:         framesDropped.WithLabelValues(camera),
		Failures:        forwardFailures.WithLabelValues(camera),
		Sequences:       sequencesStarted.WithLabelValues(camera),
		QueueDepth:      queueDepth.WithLabelValues(camera),
		QueueCapacity:   queueCapacity.WithLabelValues(camera),
		ForwardDuration: forwardDuration.WithLabelValues(camera),
	}
}

// DeleteCamera removes all metrics for a camera.
func DeleteCamera(camera string) {
	framesReceived.DeleteLabelValues(camera)
	framesForwarded.DeleteLabelValues(camera)
	framesDropped.DeleteLabelValues(camera)
	forwardFailures.DeleteLabelValues(camera)
	sequencesStarted.DeleteLabelValues(camera)
	queueDepth.DeleteLabelValues(camera)
	queueCapacity.DeleteLabelValues(camera)
	forwardDuration.DeleteLabelValues(camera)
}
