// Package input debounces and batches raw key events before they reach the
// state-mutating handlers. The terminal delivers key-repeat bursts far faster
// than a redraw is worth; this layer collapses them into single steps.
package input

import (
	"time"
)

// Key identifies a logical key, already normalized from raw terminal bytes.
type Key int

const (
	KeyUnknown Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
	KeyTab
	KeyBacktab
	KeyBackspace
	KeyRune
)

// Event is one normalized input event. Rune carries the character for
// KeyRune events.
type Event struct {
	Key  Key
	Rune rune
	At   time.Time
}

// IsNavigation reports whether the event moves a selection. vi-style h/j/k/l
// count alongside the arrow keys.
func (e Event) IsNavigation() bool {
	switch e.Key {
	case KeyUp, KeyDown, KeyLeft, KeyRight:
		return true
	case KeyRune:
		switch e.Rune {
		case 'h', 'j', 'k', 'l':
			return true
		}
	}
	return false
}

// deltas maps an event onto signed (vertical, horizontal) movement.
func deltas(e Event) (v, h int) {
	switch e.Key {
	case KeyUp:
		return -1, 0
	case KeyDown:
		return 1, 0
	case KeyLeft:
		return 0, -1
	case KeyRight:
		return 0, 1
	case KeyRune:
		switch e.Rune {
		case 'k':
			return -1, 0
		case 'j':
			return 1, 0
		case 'h':
			return 0, -1
		case 'l':
			return 0, 1
		}
	}
	return 0, 0
}

// Debouncer drops an event identical to the immediately preceding one when
// it arrives inside the window, collapsing terminal key-repeat noise.
type Debouncer struct {
	window time.Duration
	last   Event
	hasOne bool
}

func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Accept reports whether the event should be processed. Distinct events
// always pass; a duplicate passes only after the window has elapsed.
func (d *Debouncer) Accept(e Event) bool {
	if d.hasOne && d.last.Key == e.Key && d.last.Rune == e.Rune &&
		e.At.Sub(d.last.At) < d.window {
		return false
	}
	d.last = e
	d.hasOne = true
	return true
}

// NavStep is one coalesced navigation emission: the net movement since the
// batch opened.
type NavStep struct {
	Vertical   int
	Horizontal int
}

// NavigationBatcher accumulates directional events into signed deltas and
// emits one coalesced step when the quiet period elapses or the batch is
// flushed. A net delta of zero emits nothing.
type NavigationBatcher struct {
	quiet    time.Duration
	vertical int
	horiz    int
	lastAdd  time.Time
	pending  bool
}

func NewNavigationBatcher(quiet time.Duration) *NavigationBatcher {
	return &NavigationBatcher{quiet: quiet}
}

// Add folds a navigation event into the running batch.
func (b *NavigationBatcher) Add(e Event) {
	v, h := deltas(e)
	if v == 0 && h == 0 {
		return
	}
	b.vertical += v
	b.horiz += h
	b.lastAdd = e.At
	b.pending = true
}

// Poll emits the batched step once the quiet period has elapsed since the
// last addition. Zero net movement resolves to no step at all.
func (b *NavigationBatcher) Poll(now time.Time) (NavStep, bool) {
	if !b.pending || now.Sub(b.lastAdd) < b.quiet {
		return NavStep{}, false
	}
	return b.drain()
}

// Flush emits whatever is batched immediately.
func (b *NavigationBatcher) Flush() (NavStep, bool) {
	if !b.pending {
		return NavStep{}, false
	}
	return b.drain()
}

func (b *NavigationBatcher) drain() (NavStep, bool) {
	step := NavStep{Vertical: b.vertical, Horizontal: b.horiz}
	b.vertical, b.horiz = 0, 0
	b.pending = false
	if step.Vertical == 0 && step.Horizontal == 0 {
		return NavStep{}, false
	}
	return step, true
}

// Batcher composes the debouncer and the navigation batcher: non-navigation
// events pass through immediately after debouncing, navigation events are
// withheld until their window closes.
type Batcher struct {
	debounce *Debouncer
	nav      *NavigationBatcher
}

const (
	defaultDebounceWindow = 15 * time.Millisecond
	defaultQuietPeriod    = 40 * time.Millisecond
)

func NewBatcher() *Batcher {
	return &Batcher{
		debounce: NewDebouncer(defaultDebounceWindow),
		nav:      NewNavigationBatcher(defaultQuietPeriod),
	}
}

// Offer feeds one raw event in. The returned event is non-nil only for a
// pass-through (non-navigation) event that survived debouncing.
func (b *Batcher) Offer(e Event) *Event {
	if !b.debounce.Accept(e) {
		return nil
	}
	if e.IsNavigation() {
		b.nav.Add(e)
		return nil
	}
	return &e
}

// Poll asks the navigation batcher for a due step.
func (b *Batcher) Poll(now time.Time) (NavStep, bool) {
	return b.nav.Poll(now)
}

// Flush forces out any batched navigation, used before a mode switch so a
// queued movement cannot land in the wrong handler.
func (b *Batcher) Flush() (NavStep, bool) {
	return b.nav.Flush()
}
