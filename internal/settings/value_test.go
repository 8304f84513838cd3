package settings

import (
	"sync"
	"testing"
	"time"
)

func TestValueSetNotifiesOnChange(t *testing.T) {
	v := NewValue("flag", false)
	var got []bool
	unsubscribe := v.Subscribe(func(b bool) { got = append(got, b) })

	if v.Set(false) {
		t.Fatalf("expected unchanged set to report false")
	}
	if !v.Set(true) {
		t.Fatalf("expected changed set to report true")
	}
	if len(got) != 1 || !got[0] {
		t.Fatalf("unexpected notifications: %v", got)
	}

	unsubscribe()
	unsubscribe()
	v.Set(false)
	if len(got) != 1 {
		t.Fatalf("expected no notifications after unsubscribe, got %v", got)
	}
	if v.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", v.Subscribers())
	}
}

func TestValueSubscribersRunInOrder(t *testing.T) {
	v := NewValue("url", "")
	var order []string
	v.OnChange(func() { order = append(order, "first") })
	v.OnChange(func() { order = append(order, "second") })
	v.Set("x")
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestValueCallbackMayRead(t *testing.T) {
	v := NewValue("n", 0)
	var seen int
	v.OnChange(func() { seen = v.Get() })
	v.Set(7)
	if seen != 7 {
		t.Fatalf("expected callback to read new value, got %d", seen)
	}
}

func TestListSynchronousNotify(t *testing.T) {
	l := NewList[string]("phrases", 0)
	calls := 0
	l.OnChange(func() { calls++ })

	l.Append("a")
	l.Append("b")
	if !l.Set(1, "c") {
		t.Fatalf("expected set in range")
	}
	if l.Set(5, "x") {
		t.Fatalf("expected set out of range to fail")
	}
	if !l.RemoveAt(0) {
		t.Fatalf("expected remove in range")
	}
	if calls != 4 {
		t.Fatalf("expected 4 notifications, got %d", calls)
	}
	items := l.Items()
	if len(items) != 1 || items[0] != "c" {
		t.Fatalf("unexpected items: %v", items)
	}
	items[0] = "mutated"
	if l.Items()[0] != "c" {
		t.Fatalf("expected Items to return a copy")
	}
}

func TestListDelayedNotifyCoalesces(t *testing.T) {
	l := NewList[int]("users", 50*time.Millisecond)
	defer l.Close()

	var (
		mu    sync.Mutex
		calls int
	)
	l.OnChange(func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	l.Append(1)
	l.Append(2)
	l.Replace([]int{3, 4, 5})

	mu.Lock()
	if calls != 0 {
		mu.Unlock()
		t.Fatalf("expected no immediate notification")
	}
	mu.Unlock()

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected one coalesced notification, got %d", calls)
	}
	if l.Len() != 3 {
		t.Fatalf("expected 3 items, got %d", l.Len())
	}
}

func TestListCloseCancelsPending(t *testing.T) {
	l := NewList[int]("badges", 20*time.Millisecond)
	calls := make(chan struct{}, 1)
	l.OnChange(func() { calls <- struct{}{} })

	l.Append(1)
	l.Close()

	select {
	case <-calls:
		t.Fatalf("expected pending notification to be cancelled")
	case <-time.After(80 * time.Millisecond):
	}
}
