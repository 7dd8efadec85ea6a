package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ExtractionEvent represents one step of a cohort run
type ExtractionEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	RunID          string                 `json:"run_id"`
	Image          string                 `json:"image,omitempty"`
	Field          string                 `json:"field,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	Success        bool                   `json:"success"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of extraction event
type EventType string

const (
	// RunStarted when a batch begins
	RunStarted EventType = "run_started"
	// RunCompleted when a batch finishes, aborted or not
	RunCompleted EventType = "run_completed"
	// ImageStarted when an image is taken from the collection
	ImageStarted EventType = "image_started"
	// ImageCompleted when a record was committed
	ImageCompleted EventType = "image_completed"
	// ImageFailed when an image could not be opened or timed out
	ImageFailed EventType = "image_failed"
	// FieldFailed when one field of a committed record could not be derived
	FieldFailed EventType = "field_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event ExtractionEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event ExtractionEvent)
	// Wait blocks until every notification sent so far was handled
	Wait()
}

// LoggingObserver logs extraction events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles extraction events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event ExtractionEvent) {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"run_id":     event.RunID,
	}
	if event.Image != "" {
		fields["image"] = event.Image
	}
	if event.Field != "" {
		fields["field"] = event.Field
	}
	if event.ProcessingTime > 0 {
		fields["processing_time"] = event.ProcessingTime
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case RunStarted:
		entry.Info("Cohort run started")
	case RunCompleted:
		entry.Info("Cohort run completed")
	case ImageStarted:
		entry.Debug("Image extraction started")
	case ImageCompleted:
		entry.Info("Image extraction completed")
	case ImageFailed:
		entry.Error("Image extraction failed")
	case FieldFailed:
		entry.Warn("Field extraction failed")
	default:
		entry.Info("Extraction event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	pending   sync.WaitGroup
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() Subject {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event ExtractionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	// Notify observers concurrently
	for _, observer := range observers {
		p.pending.Add(1)
		go func(obs Observer) {
			defer p.pending.Done()
			defer func() {
				if r := recover(); r != nil {
					// Log panic but don't crash the application
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Wait blocks until all dispatched notifications were handled
func (p *EventPublisher) Wait() {
	p.pending.Wait()
}
