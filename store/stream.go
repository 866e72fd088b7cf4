package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/GoCodeAlone/todospa"
)

// ErrAlreadyRunning is returned by Run when the stream is already running.
var ErrAlreadyRunning = errors.New("stream is already running")

// Revision is one published state together with the state it replaced.
// Seq 0 is the initial state.
type Revision struct {
	Seq      uint64
	Previous State
	State    State
}

// Subscriber receives every published revision.
type Subscriber func(Revision)

// Middleware sees each freshly merged state before it is published. It may
// return an augmented state, which is published in place of cur as the same
// revision, and deferred work to run once every subscriber has seen it.
type Middleware func(prev, cur State) (State, []func())

type queued struct {
	patch   Patch
	barrier chan struct{}
}

type subscription struct {
	id int
	fn Subscriber
}

// Stream owns the authoritative current state. Patches pushed from any
// goroutine are applied one at a time, in push order, by the goroutine
// running Run; each yields exactly one new revision.
type Stream struct {
	mu          sync.Mutex
	current     State
	seq         uint64
	started     bool
	running     bool
	queue       []queued
	wake        chan struct{}
	subscribers []subscription
	nextID      int

	middleware []Middleware
	logger     todospa.Logger
	subject    todospa.Subject
}

// Option configures a Stream.
type Option func(*Stream)

// WithMiddleware appends middleware, run in the order given.
func WithMiddleware(m ...Middleware) Option {
	return func(s *Stream) { s.middleware = append(s.middleware, m...) }
}

// WithLogger sets the logger used for revisions and subscriber panics.
func WithLogger(l todospa.Logger) Option {
	return func(s *Stream) { s.logger = l }
}

// WithSubject emits a state.changed event to subject for every revision.
func WithSubject(subject todospa.Subject) Option {
	return func(s *Stream) { s.subject = subject }
}

// NewStream creates a stream seeded with initial.
func NewStream(initial State, opts ...Option) *Stream {
	s := &Stream{
		current: initial,
		wake:    make(chan struct{}, 1),
		logger:  todospa.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push queues a patch. It never blocks and is safe to call from subscribers,
// middleware, deferred work and other goroutines.
func (s *Stream) Push(p Patch) {
	s.enqueue(queued{patch: p})
}

func (s *Stream) enqueue(q queued) {
	s.mu.Lock()
	s.queue = append(s.queue, q)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Subscribe registers fn to be called synchronously, in subscription order,
// for every revision published after this call. The returned function
// cancels the subscription.
func (s *Stream) Subscribe(fn Subscriber) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers = append(s.subscribers, subscription{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subscribers = slices.DeleteFunc(s.subscribers, func(sub subscription) bool { return sub.id == id })
	}
}

// Current returns the latest published state.
func (s *Stream) Current() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Revision returns the sequence number of the latest published state.
func (s *Stream) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Sync blocks until every patch pushed before the call has been applied and
// published, or ctx is done.
func (s *Stream) Sync(ctx context.Context) error {
	done := make(chan struct{})
	s.enqueue(queued{barrier: done})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stream sync: %w", ctx.Err())
	}
}

// Run publishes the initial state, the first time it is called, then
// applies queued patches until ctx is done. All merges, middleware and
// subscriber calls happen on the calling goroutine.
func (s *Stream) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	started := s.started
	s.started = true
	initial := s.current
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if !started {
		s.publish(State{}, initial, false)
	}

	for {
		if q, ok := s.dequeue(); ok {
			if q.barrier != nil {
				close(q.barrier)
				continue
			}
			prev := s.Current()
			s.publish(prev, Merge(prev, q.patch), true)
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		}
	}
}

func (s *Stream) dequeue() (queued, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return queued{}, false
	}
	q := s.queue[0]
	s.queue[0] = queued{}
	s.queue = s.queue[1:]
	return q, true
}

func (s *Stream) publish(prev, next State, advance bool) {
	var deferred []func()
	for i, m := range s.middleware {
		cur, d, ok := s.runMiddleware(i, m, prev, next)
		if !ok {
			continue
		}
		next = cur
		deferred = append(deferred, d...)
	}

	s.mu.Lock()
	if advance {
		s.seq++
	}
	s.current = next
	rev := Revision{Seq: s.seq, Previous: prev, State: next}
	subs := slices.Clone(s.subscribers)
	s.mu.Unlock()

	s.logger.Debug("State published", "revision", rev.Seq, "route", next.Route.String(), "todos", len(next.Todos))
	for _, sub := range subs {
		s.notify(sub, rev)
	}
	todospa.Emit(context.Background(), s.subject, s.logger, "store", todospa.EventTypeStateChanged, map[string]any{
		"revision": rev.Seq,
		"route":    next.Route.String(),
		"todos":    len(next.Todos),
	})

	for _, fn := range deferred {
		s.runDeferred(fn, rev.Seq)
	}
}

// runMiddleware calls m, reporting ok=false if it panicked. A panicking
// middleware leaves the state unchanged and contributes no deferred work.
func (s *Stream) runMiddleware(i int, m Middleware, prev, cur State) (next State, deferred []func(), ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Middleware panicked", "middleware", i, "route", cur.Route.String(), "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	next, deferred = m(prev, cur)
	return next, deferred, true
}

func (s *Stream) runDeferred(fn func(), seq uint64) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Deferred work panicked", "revision", seq, "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

func (s *Stream) notify(sub subscription, rev Revision) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Subscriber panicked", "subscriber", sub.id, "revision", rev.Seq, "panic", fmt.Sprint(r))
		}
	}()
	sub.fn(rev)
}
