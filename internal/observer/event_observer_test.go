package observer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	name   string
	mu     sync.Mutex
	events []ExtractionEvent
}

func (r *recordingObserver) OnEvent(ctx context.Context, event ExtractionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingObserver) GetObserverName() string { return r.name }

type panickingObserver struct{}

func (panickingObserver) OnEvent(ctx context.Context, event ExtractionEvent) { panic("boom") }
func (panickingObserver) GetObserverName() string                            { return "panicking" }

func TestEventPublisher_NotifyAndWait(t *testing.T) {
	pub := NewEventPublisher()
	rec := &recordingObserver{name: "recorder"}
	pub.Subscribe(rec)
	pub.Subscribe(panickingObserver{})

	for i := 0; i < 5; i++ {
		pub.NotifyObservers(context.Background(), ExtractionEvent{EventType: ImageStarted, Image: "a.svs"})
	}
	pub.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.events, 5)
	assert.False(t, rec.events[0].Timestamp.IsZero(), "timestamp is filled in")
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	pub := NewEventPublisher()
	rec := &recordingObserver{name: "recorder"}
	pub.Subscribe(rec)
	pub.Unsubscribe(rec)

	pub.NotifyObservers(context.Background(), ExtractionEvent{EventType: RunStarted})
	pub.Wait()

	assert.Empty(t, rec.events)
}

func TestLoggingObserver(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	obs := NewLoggingObserver(log)

	obs.OnEvent(context.Background(), ExtractionEvent{
		EventType:    ImageFailed,
		RunID:        "run-1",
		Image:        "b.ndpi",
		ErrorMessage: "cannot open",
	})
	obs.OnEvent(context.Background(), ExtractionEvent{
		EventType: FieldFailed,
		RunID:     "run-1",
		Image:     "c.svs",
		Field:     "calibration",
	})

	require.Len(t, hook.AllEntries(), 2)
	failed := hook.AllEntries()[0]
	assert.Equal(t, logrus.ErrorLevel, failed.Level)
	assert.Equal(t, "b.ndpi", failed.Data["image"])
	assert.Equal(t, "cannot open", failed.Data["error"])
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "calibration", hook.LastEntry().Data["field"])
}

func TestMetricsObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewMetricsObserver(reg)
	require.NoError(t, err)
	ctx := context.Background()

	obs.OnEvent(ctx, ExtractionEvent{EventType: ImageStarted})
	obs.OnEvent(ctx, ExtractionEvent{EventType: ImageCompleted, ProcessingTime: 20 * time.Millisecond})
	obs.OnEvent(ctx, ExtractionEvent{EventType: ImageStarted})
	obs.OnEvent(ctx, ExtractionEvent{EventType: ImageFailed})
	obs.OnEvent(ctx, ExtractionEvent{EventType: FieldFailed, Field: "calibration"})
	obs.OnEvent(ctx, ExtractionEvent{EventType: RunCompleted})

	assert.Equal(t, 1.0, testutil.ToFloat64(obs.images.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.images.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.fieldErrors.WithLabelValues("calibration")))
	assert.Equal(t, 1.0, testutil.ToFloat64(obs.runs))
	assert.Equal(t, 0.0, testutil.ToFloat64(obs.inFlight))

	snapshot := obs.GetMetrics()
	assert.Equal(t, int64(2), snapshot["total_images"])
	assert.Equal(t, int64(1), snapshot["failed_images"])
	assert.Equal(t, "20ms", snapshot["avg_processing_time"])

	_, err = NewMetricsObserver(reg)
	assert.Error(t, err, "registering twice on one registry fails")
}
