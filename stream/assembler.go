// Package stream assembles a transport's ordered chunk stream into a single
// finalized assistant message, notifying a sink after every chunk so hosts
// can render partial output as it arrives.
package stream

import (
	"context"
	"time"

	"github.com/recodeai/recode"
)

// Sink receives an update after each chunk: the delta text just received
// and the full accumulated text so far. Sinks must not block; they run on
// the assembler's goroutine.
type Sink func(delta, full string)

// Turn is the finalized outcome of one assistant turn.
type Turn struct {
	// Message is the finalized assistant message. Built even when the
	// stream terminated early; text already delivered is never retracted.
	Message recode.Message
	// Response carries the transport's end-of-turn data. Nil when the
	// stream ended without a Done marker.
	Response *recode.Response
	// Chunks is the number of chunk events consumed.
	Chunks int
	// Partial is true when the turn was cut short by a transport error
	// or cancellation.
	Partial bool
}

// Assemble drains one turn's stream into a Turn. It returns a non-nil
// error exactly when the turn is partial: a transport error mid-stream, a
// stream closed without its end-of-turn marker, or context cancellation.
// The returned Turn is valid either way.
func Assemble(ctx context.Context, ch <-chan recode.StreamEvent, sink Sink) (Turn, error) {
	var (
		turn Turn
		buf  []byte
	)

	finalize := func(err error) (Turn, error) {
		turn.Message = recode.NewAssistantMessage(string(buf))
		turn.Message.Partial = err != nil
		turn.Message.CreatedAt = time.Now()
		turn.Partial = err != nil
		return turn, err
	}

	for {
		select {
		case <-ctx.Done():
			// The transport goroutine may be blocked sending an in-flight
			// event. Drain until it closes the channel so it can exit.
			go func() {
				for range ch {
				}
			}()
			return finalize(ctx.Err())

		case ev, ok := <-ch:
			if !ok {
				if turn.Response != nil {
					return finalize(nil)
				}
				return finalize(ErrTruncatedStream)
			}
			if ev.Err != nil {
				return finalize(ev.Err)
			}
			if ev.Done {
				turn.Response = ev.Response
				continue
			}
			turn.Chunks++
			buf = append(buf, ev.Delta...)
			if sink != nil {
				sink(ev.Delta, string(buf))
			}
		}
	}
}
