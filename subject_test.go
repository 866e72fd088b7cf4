package todospa

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	id  string
	mu  sync.Mutex
	got []string
	err error
}

func (r *recorder) OnEvent(_ context.Context, e cloudevents.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e.Type())
	return r.err
}

func (r *recorder) ObserverID() string { return r.id }

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

func TestSubjectFiltersByEventType(t *testing.T) {
	t.Parallel()
	s := NewStdSubject(nil)
	all := &recorder{id: "all"}
	routes := &recorder{id: "routes"}
	require.NoError(t, s.RegisterObserver(all))
	require.NoError(t, s.RegisterObserver(routes, EventTypeRouteArrived, EventTypeRouteLeft))

	ctx := context.Background()
	Emit(ctx, s, nil, "test", EventTypeStateChanged, map[string]any{"revision": 1})
	Emit(ctx, s, nil, "test", EventTypeRouteArrived, map[string]any{"kind": "Card"})

	assert.Equal(t, []string{EventTypeStateChanged, EventTypeRouteArrived}, all.types())
	assert.Equal(t, []string{EventTypeRouteArrived}, routes.types())
}

func TestSubjectRegistration(t *testing.T) {
	t.Parallel()
	s := NewStdSubject(nil)

	assert.ErrorIs(t, s.RegisterObserver(nil), ErrObserverNil)
	assert.ErrorIs(t, s.RegisterObserver(&recorder{}), ErrObserverIDEmpty)

	first := &recorder{id: "a"}
	require.NoError(t, s.RegisterObserver(first))
	require.NoError(t, s.RegisterObserver(&recorder{id: "b"}))
	require.NoError(t, s.RegisterObserver(first, EventTypeActionFailed))

	infos := s.GetObservers()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].ID)
	assert.Equal(t, []string{EventTypeActionFailed}, infos[0].EventTypes)

	require.NoError(t, s.UnregisterObserver(first))
	require.NoError(t, s.UnregisterObserver(first))
	assert.Len(t, s.GetObservers(), 1)
}

func TestSubjectSurvivesFailingObservers(t *testing.T) {
	t.Parallel()
	s := NewStdSubject(nil)
	panicking := NewFunctionalObserver("panics", func(context.Context, cloudevents.Event) error {
		panic("boom")
	})
	failing := &recorder{id: "fails", err: errors.New("nope")}
	after := &recorder{id: "after"}
	require.NoError(t, s.RegisterObserver(panicking))
	require.NoError(t, s.RegisterObserver(failing))
	require.NoError(t, s.RegisterObserver(after))

	err := s.NotifyObservers(context.Background(), NewCloudEvent(EventTypeActionStale, "test", nil, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{EventTypeActionStale}, after.types())
}

func TestSubjectRejectsInvalidEvent(t *testing.T) {
	t.Parallel()
	s := NewStdSubject(nil)
	err := s.NotifyObservers(context.Background(), cloudevents.NewEvent())
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestSubjectAsynchronousNotification(t *testing.T) {
	t.Parallel()
	s := NewStdSubject(nil)
	r := &recorder{id: "async"}
	require.NoError(t, s.RegisterObserver(r))

	ctx := WithAsynchronousNotification(context.Background())
	assert.True(t, IsAsynchronousNotification(ctx))
	assert.False(t, IsAsynchronousNotification(context.Background()))

	Emit(ctx, s, nil, "test", EventTypeApplicationStarted, nil)
	assert.Eventually(t, func() bool { return len(r.types()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestCloudEventIDsAreTimeOrdered(t *testing.T) {
	t.Parallel()
	a := NewCloudEvent(EventTypeStateChanged, "store", map[string]any{"revision": 1}, map[string]any{"tenant": "x"})
	b := NewCloudEvent(EventTypeStateChanged, "store", nil, nil)

	require.NoError(t, ValidateCloudEvent(a))
	assert.NotEqual(t, a.ID(), b.ID())
	assert.LessOrEqual(t, a.ID()[:8], b.ID()[:8])
	assert.Equal(t, "x", a.Extensions()["tenant"])
}

func TestEmitWithoutSubject(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() {
		Emit(context.Background(), nil, nil, "test", EventTypeStateChanged, nil)
	})
	assert.True(t, HandleEventEmissionError(ErrNoSubjectForEmit, nil, "test", EventTypeStateChanged))
	assert.False(t, HandleEventEmissionError(errors.New("x"), nil, "test", EventTypeStateChanged))
	assert.True(t, HandleEventEmissionError(errors.New("x"), NopLogger{}, "test", EventTypeStateChanged))
}
