package settings

import (
	"sync"
	"time"
)

// List is an ordered, observable collection of rule definitions. Mutations
// schedule a delayed items-changed notification; mutations inside the delay
// window are coalesced into one notification. A zero delay notifies
// synchronously.
type List[T any] struct {
	name  string
	delay time.Duration

	mu     sync.Mutex
	items  []T
	timer  *time.Timer
	closed bool

	subs subscribers[struct{}]
}

func NewList[T any](name string, delay time.Duration, items ...T) *List[T] {
	return &List[T]{name: name, delay: delay, items: append([]T(nil), items...)}
}

func (l *List[T]) Name() string { return l.name }

// Items returns a read-only copy of the current items.
func (l *List[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]T(nil), l.items...)
}

func (l *List[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *List[T]) Replace(items []T) {
	l.mutate(func() bool {
		l.items = append(l.items[:0:0], items...)
		return true
	})
}

func (l *List[T]) Append(item T) {
	l.mutate(func() bool {
		l.items = append(l.items, item)
		return true
	})
}

func (l *List[T]) Set(i int, item T) bool {
	return l.mutate(func() bool {
		if i < 0 || i >= len(l.items) {
			return false
		}
		l.items[i] = item
		return true
	})
}

func (l *List[T]) RemoveAt(i int) bool {
	return l.mutate(func() bool {
		if i < 0 || i >= len(l.items) {
			return false
		}
		l.items = append(l.items[:i:i], l.items[i+1:]...)
		return true
	})
}

// OnChange subscribes to the delayed items-changed notification.
func (l *List[T]) OnChange(fn func()) Unsubscribe {
	return l.subs.add(func(struct{}) { fn() })
}

func (l *List[T]) Subscribers() int { return l.subs.count() }

// Close cancels any pending notification and stops future ones.
func (l *List[T]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *List[T]) mutate(apply func() bool) bool {
	l.mu.Lock()
	if !apply() {
		l.mu.Unlock()
		return false
	}
	immediate := l.scheduleLocked()
	l.mu.Unlock()

	if immediate {
		l.subs.notify(struct{}{})
	}
	return true
}

func (l *List[T]) scheduleLocked() bool {
	if l.closed {
		return false
	}
	if l.delay <= 0 {
		return true
	}
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(l.delay, l.onTimer)
	return false
}

func (l *List[T]) onTimer() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.timer = nil
	l.mu.Unlock()

	l.subs.notify(struct{}{})
}
