package sink

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/you/gnasty-highlights/internal/core"
)

type recordingWriter struct {
	mu        sync.Mutex
	events    []core.HighlightEvent
	failAfter int
	calls     int
}

func (r *recordingWriter) Write(ev core.HighlightEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failAfter > 0 && r.calls >= r.failAfter {
		return fmt.Errorf("boom")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingWriter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestBufferedWriterBatchFlush(t *testing.T) {
	base := &recordingWriter{}
	bw := NewBufferedWriter(base, BufferedOptions{BatchSize: 2, FlushInterval: time.Hour})
	defer func() {
		if err := bw.Close(); err != nil {
			t.Fatalf("close error: %v", err)
		}
	}()

	if err := bw.Write(core.HighlightEvent{ID: "1"}); err != nil {
		t.Fatalf("write1: %v", err)
	}
	if base.Count() != 0 {
		t.Fatalf("expected no flush yet")
	}
	if err := bw.Write(core.HighlightEvent{ID: "2"}); err != nil {
		t.Fatalf("write2: %v", err)
	}
	if base.Count() != 2 {
		t.Fatalf("expected batch flush, got %d", base.Count())
	}
}

func TestBufferedWriterFlushInterval(t *testing.T) {
	base := &recordingWriter{}
	bw := NewBufferedWriter(base, BufferedOptions{BatchSize: 10, FlushInterval: 20 * time.Millisecond})
	defer func() {
		if err := bw.Close(); err != nil {
			t.Fatalf("close error: %v", err)
		}
	}()

	if err := bw.Write(core.HighlightEvent{ID: "interval"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	if base.Count() != 1 {
		t.Fatalf("expected timer flush, got %d", base.Count())
	}
}

func TestBufferedWriterCloseFlushesPending(t *testing.T) {
	base := &recordingWriter{}
	bw := NewBufferedWriter(base, BufferedOptions{BatchSize: 10, FlushInterval: time.Hour})

	for i := 0; i < 3; i++ {
		if err := bw.Write(core.HighlightEvent{ID: fmt.Sprint(i)}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if base.Count() != 3 {
		t.Fatalf("expected close to flush 3 events, got %d", base.Count())
	}
	if err := bw.Write(core.HighlightEvent{ID: "late"}); err == nil {
		t.Fatalf("expected write after close to fail")
	}
}

func TestBufferedWriterErrorPropagation(t *testing.T) {
	base := &recordingWriter{failAfter: 1}
	bw := NewBufferedWriter(base, BufferedOptions{BatchSize: 1, FlushInterval: 0})
	defer func() {
		_ = bw.Close()
	}()

	if err := bw.Write(core.HighlightEvent{ID: "err"}); err == nil {
		t.Fatalf("expected error from underlying writer")
	}
}
