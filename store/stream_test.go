package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/todospa"
	"github.com/GoCodeAlone/todospa/todo"
)

type recorder struct {
	mu   sync.Mutex
	revs []Revision
}

func (r *recorder) record(rev Revision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revs = append(r.revs, rev)
}

func (r *recorder) all() []Revision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Revision(nil), r.revs...)
}

func runStream(t *testing.T, s *Stream) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
}

func syncStream(t *testing.T, s *Stream) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Sync(ctx))
}

func counter(n int) Patch {
	return Assign(Fields{"n": Apply(func(cur any) any {
		c, _ := cur.([]int)
		return append(append([]int(nil), c...), n)
	})})
}

func TestStreamOrdering(t *testing.T) {
	t.Parallel()
	s0 := State{Extra: map[string]any{"n": []int{0}}}
	p1, p2, p3 := counter(1), counter(2), counter(3)
	s := NewStream(s0)
	rec := &recorder{}
	s.Subscribe(rec.record)

	s.Push(p1)
	s.Push(p2)
	s.Push(p3)
	runStream(t, s)
	syncStream(t, s)

	want := Merge(Merge(Merge(s0, p1), p2), p3)
	assert.Equal(t, want, s.Current())
	assert.Equal(t, uint64(3), s.Revision())

	revs := rec.all()
	require.Len(t, revs, 4)
	for i, rev := range revs {
		assert.Equal(t, uint64(i), rev.Seq)
	}
	assert.Equal(t, s0, revs[0].State, "initial state is published first")
	assert.Equal(t, []int{0, 1, 2, 3}, revs[3].State.Extra["n"])
	assert.Equal(t, revs[2].State, revs[3].Previous)
}

func TestStreamSubscribersInOrder(t *testing.T) {
	t.Parallel()
	s := NewStream(State{})
	var mu sync.Mutex
	var calls []string
	mark := func(name string) Subscriber {
		return func(Revision) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, name)
		}
	}
	s.Subscribe(mark("a"))
	cancelB := s.Subscribe(mark("b"))
	s.Subscribe(mark("c"))

	runStream(t, s)
	syncStream(t, s)
	cancelB()
	s.Push(counter(1))
	syncStream(t, s)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c", "a", "c"}, calls)
}

func TestStreamMiddlewareAugmentsSameRevision(t *testing.T) {
	t.Parallel()
	var order []string
	var mu sync.Mutex
	note := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	mw := func(prev, cur State) (State, []func()) {
		cur = Merge(cur, Assign(Fields{"seen": Set(len(cur.Todos))}))
		return cur, []func(){func() { note("deferred") }}
	}
	s := NewStream(State{}, WithMiddleware(mw))
	rec := &recorder{}
	s.Subscribe(func(rev Revision) {
		note("subscriber")
		rec.record(rev)
	})

	runStream(t, s)
	s.Push(Assign(SetTodos([]todo.Todo{{ID: "a"}})))
	syncStream(t, s)

	revs := rec.all()
	require.Len(t, revs, 2)
	assert.Equal(t, 1, revs[1].State.Extra["seen"])
	assert.Equal(t, uint64(1), revs[1].Seq)
	assert.Equal(t, 1, s.Current().Extra["seen"])

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"subscriber", "deferred", "subscriber", "deferred"}, order)
}

func TestStreamPushFromSubscriberIsQueued(t *testing.T) {
	t.Parallel()
	s := NewStream(State{})
	rec := &recorder{}
	s.Subscribe(func(rev Revision) {
		if rev.Seq == 1 {
			s.Push(counter(2))
		}
		rec.record(rev)
	})

	runStream(t, s)
	s.Push(counter(1))
	require.Eventually(t, func() bool { return len(rec.all()) == 3 }, 2*time.Second, 5*time.Millisecond)

	revs := rec.all()
	require.Len(t, revs, 3)
	assert.Equal(t, []int{1}, revs[1].State.Extra["n"])
	assert.Equal(t, []int{1, 2}, revs[2].State.Extra["n"])
}

func TestStreamSubscriberPanicIsContained(t *testing.T) {
	t.Parallel()
	s := NewStream(State{})
	rec := &recorder{}
	s.Subscribe(func(Revision) { panic("boom") })
	s.Subscribe(rec.record)

	runStream(t, s)
	s.Push(counter(1))
	syncStream(t, s)

	assert.Len(t, rec.all(), 2)
}

func TestStreamMiddlewarePanicIsContained(t *testing.T) {
	t.Parallel()
	var ran []string
	var mu sync.Mutex
	note := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		ran = append(ran, s)
	}

	faulty := func(prev, cur State) (State, []func()) {
		if len(cur.Todos) == 1 {
			panic("boom")
		}
		return Merge(cur, Assign(Fields{"faulty": Set(true)})), []func(){func() { note("faulty") }}
	}
	marker := func(prev, cur State) (State, []func()) {
		return Merge(cur, Assign(Fields{"seen": Set(len(cur.Todos))})), []func(){func() { note("marker") }}
	}
	s := NewStream(State{}, WithMiddleware(faulty, marker))
	rec := &recorder{}
	s.Subscribe(rec.record)

	runStream(t, s)
	s.Push(Assign(SetTodos([]todo.Todo{{ID: "a"}})))
	s.Push(Assign(Fields{FieldTodos: AppendTodo(todo.Todo{ID: "b"})}))
	syncStream(t, s)

	revs := rec.all()
	require.Len(t, revs, 3)
	assert.Equal(t, uint64(1), revs[1].Seq)
	assert.Equal(t, 1, revs[1].State.Extra["seen"])
	assert.Equal(t, true, revs[1].State.Extra["faulty"], "carried over from the initial revision")
	assert.Equal(t, 2, revs[2].State.Extra["seen"])

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"faulty", "marker", "marker", "faulty", "marker"}, ran)
}

func TestStreamRunTwice(t *testing.T) {
	t.Parallel()
	s := NewStream(State{})
	runStream(t, s)
	syncStream(t, s)

	assert.ErrorIs(t, s.Run(context.Background()), ErrAlreadyRunning)
}

func TestStreamEmitsStateChanged(t *testing.T) {
	t.Parallel()
	subject := todospa.NewStdSubject(nil)
	var mu sync.Mutex
	var types []string
	require.NoError(t, subject.RegisterObserver(todospa.NewFunctionalObserver("rec", func(_ context.Context, e todospa.CloudEvent) error {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.Type())
		return nil
	})))

	s := NewStream(State{}, WithSubject(subject))
	runStream(t, s)
	s.Push(counter(1))
	syncStream(t, s)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{todospa.EventTypeStateChanged, todospa.EventTypeStateChanged}, types)
}

func TestStreamSyncHonoursContext(t *testing.T) {
	t.Parallel()
	s := NewStream(State{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Sync(ctx), context.Canceled)
}
