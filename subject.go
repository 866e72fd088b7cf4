package todospa

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// observerRegistration holds information about a registered observer
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	registeredAt time.Time
}

// StdSubject is the standard Subject implementation. Observers are notified
// inline, in registration order, unless the context carries
// WithAsynchronousNotification.
type StdSubject struct {
	mu            sync.RWMutex
	registrations []*observerRegistration
	logger        Logger
}

var _ Subject = (*StdSubject)(nil)

// NewStdSubject creates an empty subject. A nil logger discards output.
func NewStdSubject(logger Logger) *StdSubject {
	if logger == nil {
		logger = NopLogger{}
	}
	return &StdSubject{logger: logger}
}

// RegisterObserver adds an observer to receive notifications.
func (s *StdSubject) RegisterObserver(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return ErrObserverNil
	}
	if observer.ObserverID() == "" {
		return ErrObserverIDEmpty
	}

	eventTypeMap := make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}
	reg := &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(observer.ObserverID()); i >= 0 {
		s.registrations[i] = reg
	} else {
		s.registrations = append(s.registrations, reg)
	}

	s.logger.Debug("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	return nil
}

// UnregisterObserver removes an observer from receiving notifications.
func (s *StdSubject) UnregisterObserver(observer Observer) error {
	if observer == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(observer.ObserverID()); i >= 0 {
		s.registrations = slices.Delete(s.registrations, i, i+1)
		s.logger.Debug("Observer unregistered", "observerID", observer.ObserverID())
	}
	return nil
}

func (s *StdSubject) indexOf(id string) int {
	return slices.IndexFunc(s.registrations, func(r *observerRegistration) bool {
		return r.observer.ObserverID() == id
	})
}

// NotifyObservers sends a CloudEvent to all interested observers.
func (s *StdSubject) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := ValidateCloudEvent(event); err != nil {
		s.logger.Error("Invalid CloudEvent", "eventType", event.Type(), "error", err)
		return err
	}

	s.mu.RLock()
	regs := slices.Clone(s.registrations)
	s.mu.RUnlock()

	async := IsAsynchronousNotification(ctx)
	for _, reg := range regs {
		if len(reg.eventTypes) > 0 && !reg.eventTypes[event.Type()] {
			continue
		}
		if async {
			go s.deliver(ctx, reg, event)
			continue
		}
		s.deliver(ctx, reg, event)
	}
	return nil
}

func (s *StdSubject) deliver(ctx context.Context, reg *observerRegistration, event cloudevents.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Observer panicked", "observerID", reg.observer.ObserverID(), "event", event.Type(), "panic", fmt.Sprint(r))
		}
	}()
	if err := reg.observer.OnEvent(ctx, event); err != nil {
		s.logger.Error("Observer error", "observerID", reg.observer.ObserverID(), "event", event.Type(), "error", err)
	}
}

// GetObservers returns information about currently registered observers.
func (s *StdSubject) GetObservers() []ObserverInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := make([]ObserverInfo, 0, len(s.registrations))
	for _, reg := range s.registrations {
		eventTypes := make([]string, 0, len(reg.eventTypes))
		for eventType := range reg.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}
		slices.Sort(eventTypes)
		info = append(info, ObserverInfo{
			ID:           reg.observer.ObserverID(),
			EventTypes:   eventTypes,
			RegisteredAt: reg.registeredAt,
		})
	}
	return info
}
