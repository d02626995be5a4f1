package input

import (
	"bufio"
	"io"
	"time"
)

// ReaderSource adapts a byte stream (the terminal in raw mode) into a
// non-blocking event Source. A goroutine does the blocking reads; TryRead
// only drains its channel.
type ReaderSource struct {
	events chan Event
}

func NewReaderSource(r io.Reader) *ReaderSource {
	src := &ReaderSource{events: make(chan Event, 64)}
	go src.readLoop(r)
	return src
}

func (s *ReaderSource) readLoop(r io.Reader) {
	defer close(s.events)
	br := bufio.NewReader(r)

	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}

		e := Event{At: time.Now()}
		switch b {
		case 0x1b: // ESC, possibly a CSI arrow sequence
			e = decodeEscape(br)
		case '\r', '\n':
			e.Key = KeyEnter
		case '\t':
			e.Key = KeyTab
		case 0x7f, 0x08: // DEL and BS both arrive for the backspace key
			e.Key = KeyBackspace
		default:
			e.Key = KeyRune
			e.Rune = rune(b)
		}

		select {
		case s.events <- e:
		default:
			// A full buffer means the pump is hopelessly behind; dropping
			// key-repeat noise is better than blocking the reader.
		}
	}
}

func decodeEscape(br *bufio.Reader) Event {
	e := Event{At: time.Now(), Key: KeyEscape}

	peek, err := br.Peek(2)
	if err != nil || len(peek) < 2 || peek[0] != '[' {
		return e
	}
	_, _ = br.Discard(2)

	switch peek[1] {
	case 'A':
		e.Key = KeyUp
	case 'B':
		e.Key = KeyDown
	case 'C':
		e.Key = KeyRight
	case 'D':
		e.Key = KeyLeft
	case 'Z':
		e.Key = KeyBacktab
	default:
		e.Key = KeyUnknown
	}
	return e
}

// TryRead implements Source without blocking.
func (s *ReaderSource) TryRead() (Event, bool) {
	select {
	case e, ok := <-s.events:
		if !ok {
			return Event{}, false
		}
		return e, true
	default:
		return Event{}, false
	}
}
