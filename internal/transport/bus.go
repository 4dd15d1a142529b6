package transport

import (
	"context"

	"github.com/anyfind/anyfind/internal/kprobe"
)

// Bus carries encoded events from the merger to the single userspace
// consumer, matching spec.md §4.C3's "best-effort, no retry" delivery
// semantics: if the channel is full, the send is dropped rather than
// blocking the merger's drain loop.
type Bus struct {
	ch chan []byte
}

// NewBus creates a Bus with the given backlog capacity.
func NewBus(capacity int) *Bus {
	return &Bus{ch: make(chan []byte, capacity)}
}

// Publish encodes e and attempts a non-blocking send. A full bus drops
// the message silently — the event is lost and no retry occurs, per
// spec.md §4.C3.
func (b *Bus) Publish(e kprobe.Event) (delivered bool, err error) {
	msg, err := Encode(e)
	if err != nil {
		return false, err
	}
	select {
	case b.ch <- msg:
		return true, nil
	default:
		return false, nil
	}
}

// Consume is the single-reader receive loop over the bus: it blocks for
// the next well-formed event and returns false once the bus is closed
// or ctx is done. Feeding the bus (draining the merger and calling
// Publish) is the caller's job.
func (b *Bus) Consume(ctx context.Context) (kprobe.Event, bool) {
	for {
		select {
		case msg, ok := <-b.ch:
			if !ok {
				return kprobe.Event{}, false
			}
			e, err := Decode(msg)
			if err != nil {
				// Malformed message: protocol error, skipped per spec.md
				// §7, never fatal. Bus carries no logger, so the skip is
				// not logged.
				continue
			}
			return e, true
		case <-ctx.Done():
			return kprobe.Event{}, false
		}
	}
}

// Close shuts down the bus; further Publish calls will panic, matching
// Go channel semantics, so callers must stop publishing before closing.
func (b *Bus) Close() { close(b.ch) }
