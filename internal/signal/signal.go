// Package signal provides broadcast values for store state and UI flags.
//
// A Signal holds the latest value of something and fans changes out two ways:
// callback observers registered with Subscribe, and ping channels obtained
// from Notify for goroutines that prefer to re-read the value on their own
// schedule (the SSE handlers and the settings persister).
package signal

import "sync"

// Signal is a broadcast value with an observer registry.
type Signal[T any] struct {
	mu        sync.RWMutex
	value     T
	equal     func(a, b T) bool
	replay    bool
	nextID    int
	observers []observer[T]
	listeners map[chan struct{}]struct{}
}

type observer[T any] struct {
	id int
	fn func(T)
}

// Option configures a Signal.
type Option[T any] func(*Signal[T])

// WithEqual makes Set and Update skip the broadcast when the new value is
// equal to the current one.
func WithEqual[T any](eq func(a, b T) bool) Option[T] {
	return func(s *Signal[T]) {
		s.equal = eq
	}
}

// WithoutReplay stops Subscribe from delivering the current value on
// registration. Used for event streams where the held value is only the
// last event.
func WithoutReplay[T any]() Option[T] {
	return func(s *Signal[T]) {
		s.replay = false
	}
}

// New creates a Signal holding initial.
func New[T any](initial T, opts ...Option[T]) *Signal[T] {
	s := &Signal[T]{
		value:     initial,
		replay:    true,
		listeners: make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and broadcasts it. It reports whether a broadcast
// happened.
func (s *Signal[T]) Set(v T) bool {
	return s.Update(func(T) T { return v })
}

// Update applies fn to the current value under the write lock and broadcasts
// the result. Observers run on the calling goroutine after the lock is
// released, in registration order.
func (s *Signal[T]) Update(fn func(T) T) bool {
	s.mu.Lock()
	next := fn(s.value)
	if s.equal != nil && s.equal(s.value, next) {
		s.mu.Unlock()
		return false
	}
	s.value = next
	observers := make([]observer[T], len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, o := range observers {
		o.fn(next)
	}
	s.ping()
	return true
}

// Subscribe registers fn and returns a function that removes it. Unless the
// signal was built WithoutReplay, fn is called once with the current value
// before Subscribe returns.
func (s *Signal[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observer[T]{id: id, fn: fn})
	current := s.value
	replay := s.replay
	s.mu.Unlock()

	if replay {
		fn(current)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i], s.observers[i+1:]...)
					break
				}
			}
		})
	}
}

// Notify returns a channel that receives a ping whenever the value changes.
// Pings coalesce: a slow reader sees one ping for any number of changes and
// should re-read the value with Get. The caller must call Unnotify when done.
func (s *Signal[T]) Notify() chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.listeners[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

// Unnotify removes a listener channel and closes it.
func (s *Signal[T]) Unnotify(ch chan struct{}) {
	s.mu.Lock()
	_, ok := s.listeners[ch]
	delete(s.listeners, ch)
	s.mu.Unlock()
	if ok {
		close(ch)
	}
}

// ping sends a non-blocking wakeup to every listener.
func (s *Signal[T]) ping() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.listeners {
		select {
		case ch <- struct{}{}:
		default:
			// Channel full, reader has a pending ping already
		}
	}
}

// Readonly is the observer-side view of a Signal. Stores hand these out so
// readers can sample and subscribe without being able to write.
type Readonly[T any] interface {
	Get() T
	Subscribe(fn func(T)) (unsubscribe func())
	Notify() chan struct{}
	Unnotify(ch chan struct{})
}

var _ Readonly[int] = (*Signal[int])(nil)
