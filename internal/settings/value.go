package settings

import "sync"

// Unsubscribe releases a change subscription. Calling it more than once is a no-op.
type Unsubscribe func()

// Observable is a configuration source that announces changes.
type Observable interface {
	Name() string
	OnChange(fn func()) Unsubscribe
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

type subscribers[T any] struct {
	mu   sync.Mutex
	next int
	list []subscriber[T]
}

func (s *subscribers[T]) add(fn func(T)) Unsubscribe {
	s.mu.Lock()
	s.next++
	id := s.next
	s.list = append(s.list, subscriber[T]{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.list {
				if sub.id == id {
					s.list = append(s.list[:i:i], s.list[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *subscribers[T]) notify(v T) {
	s.mu.Lock()
	fns := make([]func(T), 0, len(s.list))
	for _, sub := range s.list {
		fns = append(fns, sub.fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (s *subscribers[T]) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}

// Value is a single observable setting. Subscribers run synchronously on the
// goroutine that calls Set, and only when the value actually changes.
type Value[T comparable] struct {
	name string

	mu   sync.RWMutex
	v    T
	subs subscribers[T]
}

func NewValue[T comparable](name string, def T) *Value[T] {
	return &Value[T]{name: name, v: def}
}

func (v *Value[T]) Name() string { return v.name }

func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.v
}

// Set stores next and reports whether it differed from the previous value.
func (v *Value[T]) Set(next T) bool {
	v.mu.Lock()
	if v.v == next {
		v.mu.Unlock()
		return false
	}
	v.v = next
	v.mu.Unlock()

	v.subs.notify(next)
	return true
}

func (v *Value[T]) Subscribe(fn func(T)) Unsubscribe {
	return v.subs.add(fn)
}

func (v *Value[T]) OnChange(fn func()) Unsubscribe {
	return v.subs.add(func(T) { fn() })
}

// Subscribers reports the number of live subscriptions.
func (v *Value[T]) Subscribers() int { return v.subs.count() }
