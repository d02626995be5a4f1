package input

import (
	"strings"
	"testing"
	"time"
)

// drainEvents reads n events off the source, polling because the read loop
// runs in its own goroutine.
func drainEvents(t *testing.T, src *ReaderSource, n int) []Event {
	t.Helper()
	out := make([]Event, 0, n)
	deadline := time.Now().Add(2 * time.Second)
	for len(out) < n && time.Now().Before(deadline) {
		if e, ok := src.TryRead(); ok {
			out = append(out, e)
			continue
		}
		time.Sleep(time.Millisecond)
	}
	if len(out) < n {
		t.Fatalf("expected %d events, got %d: %+v", n, len(out), out)
	}
	return out
}

func TestReaderSourceDecodesBytes(t *testing.T) {
	raw := "a\r\t\x7f\x08\x1b[A\x1b[B\x1b[C\x1b[D\x1b[Z"
	src := NewReaderSource(strings.NewReader(raw))

	want := []struct {
		key Key
		r   rune
	}{
		{KeyRune, 'a'},
		{KeyEnter, 0},
		{KeyTab, 0},
		{KeyBackspace, 0},
		{KeyBackspace, 0},
		{KeyUp, 0},
		{KeyDown, 0},
		{KeyRight, 0},
		{KeyLeft, 0},
		{KeyBacktab, 0},
	}

	events := drainEvents(t, src, len(want))
	for i, w := range want {
		if events[i].Key != w.key || events[i].Rune != w.r {
			t.Fatalf("event %d: expected key=%d rune=%q, got key=%d rune=%q",
				i, w.key, w.r, events[i].Key, events[i].Rune)
		}
	}
}

func TestReaderSourceLoneEscape(t *testing.T) {
	src := NewReaderSource(strings.NewReader("\x1b"))
	events := drainEvents(t, src, 1)
	if events[0].Key != KeyEscape {
		t.Fatalf("a lone ESC must decode to KeyEscape, got %d", events[0].Key)
	}
}
