package todospa

import (
	"context"
	"errors"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience
type CloudEvent = cloudevents.Event

// NewCloudEvent creates a new CloudEvent with the specified parameters.
func NewCloudEvent(eventType, source string, data interface{}, metadata map[string]interface{}) cloudevents.Event {
	event := cloudevents.NewEvent()

	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}

	for key, value := range metadata {
		event.SetExtension(key, value)
	}

	return event
}

// generateEventID generates a unique identifier for CloudEvents using UUIDv7,
// which keeps ids time-ordered.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// ValidateCloudEvent checks the required CloudEvents attributes.
func ValidateCloudEvent(event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return nil
}

// Emit builds an event and sends it through subject. A nil subject is not an
// error; emission failures are logged at debug level and swallowed so that
// observers can never disturb the state loop.
func Emit(ctx context.Context, subject Subject, logger Logger, source, eventType string, data interface{}) {
	if subject == nil {
		return
	}
	event := NewCloudEvent(eventType, source, data, nil)
	if err := subject.NotifyObservers(ctx, event); err != nil {
		HandleEventEmissionError(err, logger, source, eventType)
	}
}

// HandleEventEmissionError provides consistent error handling for event emission failures.
// It returns true if the error was handled.
func HandleEventEmissionError(err error, logger Logger, source, eventType string) bool {
	if errors.Is(err, ErrNoSubjectForEmit) {
		return true
	}

	if logger != nil {
		logger.Debug("Failed to emit event", "source", source, "eventType", eventType, "error", err)
		return true
	}

	return false
}
