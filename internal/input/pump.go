package input

import (
	"context"
	"time"
)

// pollInterval targets ~120 polls per second, leaving roughly 8ms of budget
// per tick for the source read and handler dispatch.
const pollInterval = 8 * time.Millisecond

// Source produces raw events; the terminal reader implements it. TryRead
// must not block: it returns ok=false when no event is ready.
type Source interface {
	TryRead() (Event, bool)
}

// Handler consumes the pipeline's output on the pump goroutine.
type Handler interface {
	HandleEvent(e Event)
	HandleNavigation(step NavStep)
}

// Pump polls the source at a fixed rate, runs every event through the
// batcher, and dispatches to the handler. It returns when ctx is cancelled.
func Pump(ctx context.Context, src Source, handler Handler) {
	batcher := NewBatcher()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for {
			e, ok := src.TryRead()
			if !ok {
				break
			}
			if e.At.IsZero() {
				e.At = time.Now()
			}
			if out := batcher.Offer(e); out != nil {
				// A non-navigation event closes any open navigation batch so
				// ordering is preserved.
				if step, due := batcher.Flush(); due {
					handler.HandleNavigation(step)
				}
				handler.HandleEvent(*out)
			}
		}

		if step, due := batcher.Poll(time.Now()); due {
			handler.HandleNavigation(step)
		}
	}
}
