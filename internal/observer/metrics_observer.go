package observer

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsObserver exports extraction counters to Prometheus and keeps a
// snapshot for the health endpoint
type MetricsObserver struct {
	images      *prometheus.CounterVec
	fieldErrors *prometheus.CounterVec
	duration    prometheus.Histogram
	runs        prometheus.Counter
	inFlight    prometheus.Gauge

	mu                  sync.RWMutex
	totalImages         int64
	successfulImages    int64
	failedImages        int64
	fieldErrorCount     int64
	totalProcessingTime time.Duration
}

// NewMetricsObserver creates the collectors and registers them. A nil
// registerer skips registration, which tests use to stay isolated.
func NewMetricsObserver(reg prometheus.Registerer) (*MetricsObserver, error) {
	o := &MetricsObserver{
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wsicohort",
			Name:      "images_total",
			Help:      "Images processed by outcome.",
		}, []string{"outcome"}),
		fieldErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wsicohort",
			Name:      "field_errors_total",
			Help:      "Field derivation failures by field.",
		}, []string{"field"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wsicohort",
			Name:      "image_duration_seconds",
			Help:      "Time to open, normalize and enrich one image.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wsicohort",
			Name:      "runs_total",
			Help:      "Cohort runs completed.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wsicohort",
			Name:      "images_in_flight",
			Help:      "Images currently being extracted.",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{o.images, o.fieldErrors, o.duration, o.runs, o.inFlight} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return o, nil
}

// OnEvent handles extraction events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event ExtractionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case ImageStarted:
		o.totalImages++
		o.inFlight.Inc()
	case ImageCompleted:
		o.successfulImages++
		o.totalProcessingTime += event.ProcessingTime
		o.images.WithLabelValues("success").Inc()
		o.duration.Observe(event.ProcessingTime.Seconds())
		o.inFlight.Dec()
	case ImageFailed:
		o.failedImages++
		o.images.WithLabelValues("failed").Inc()
		o.inFlight.Dec()
	case FieldFailed:
		o.fieldErrorCount++
		o.fieldErrors.WithLabelValues(event.Field).Inc()
	case RunCompleted:
		o.runs.Inc()
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgProcessingTime := time.Duration(0)
	if o.successfulImages > 0 {
		avgProcessingTime = o.totalProcessingTime / time.Duration(o.successfulImages)
	}

	return map[string]interface{}{
		"total_images":          o.totalImages,
		"successful_images":     o.successfulImages,
		"failed_images":         o.failedImages,
		"field_errors":          o.fieldErrorCount,
		"total_processing_time": o.totalProcessingTime.String(),
		"avg_processing_time":   avgProcessingTime.String(),
	}
}
