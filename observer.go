package todospa

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer defines the interface for objects that want to be notified of events.
// Observers register with a Subject and are notified of state revisions, route
// arrivals and remote action outcomes.
type Observer interface {
	// OnEvent is called when an event occurs that the observer is interested in.
	// Observers should return quickly; slow observers delay the ones after them.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// Subject defines the interface for objects that can be observed.
type Subject interface {
	// RegisterObserver adds an observer to receive notifications.
	// If eventTypes is empty, the observer receives all events.
	// Registering an ID twice replaces the earlier registration in place.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. It is idempotent.
	UnregisterObserver(observer Observer) error

	// NotifyObservers sends an event to all interested observers in
	// registration order. Observer errors are logged, not returned.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error

	// GetObservers returns information about currently registered observers.
	GetObservers() []ObserverInfo
}

// ObserverInfo provides information about a registered observer.
type ObserverInfo struct {
	// ID is the unique identifier of the observer
	ID string `json:"id"`

	// EventTypes are the event types this observer is subscribed to.
	// Empty slice means all events.
	EventTypes []string `json:"eventTypes"`

	// RegisteredAt indicates when the observer was registered
	RegisteredAt time.Time `json:"registeredAt"`
}

// EventType constants emitted by the state core.
// Types use reverse domain notation, as CloudEvents recommends.
const (
	// State loop events
	EventTypeStateChanged = "com.todospa.state.changed"
	EventTypeRouteArrived = "com.todospa.route.arrived"
	EventTypeRouteLeft    = "com.todospa.route.left"
	EventTypeLocationSync = "com.todospa.location.synced"

	// Remote action events
	EventTypeActionRequested = "com.todospa.action.requested"
	EventTypeActionSucceeded = "com.todospa.action.succeeded"
	EventTypeActionFailed    = "com.todospa.action.failed"
	EventTypeActionStale     = "com.todospa.action.stale"

	// Application lifecycle events
	EventTypeApplicationStarted = "com.todospa.application.started"
	EventTypeApplicationStopped = "com.todospa.application.stopped"
)

// FunctionalObserver provides a simple way to create observers using functions.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates a new observer that uses the provided function
// to handle events.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{
		id:      id,
		handler: handler,
	}
}

// OnEvent implements the Observer interface by calling the handler function.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements the Observer interface by returning the observer ID.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}
