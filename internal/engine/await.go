package engine

import (
	"context"
	"time"
)

// eventDrainGrace bounds how long Await keeps reading events after the text
// result arrived while the event channel is still open.
const eventDrainGrace = 50 * time.Millisecond

type textResult struct {
	text string
	err  error
}

// Await consumes the events of run while waiting for its text result. Each
// event is passed to onEvent, in channel order, from the calling goroutine.
// A nil onEvent discards events.
//
// Events that are still buffered when the text arrives are delivered before
// Await returns, so callers can emit the final result after every event.
func Await(ctx context.Context, run Run, onEvent func(Event)) (string, error) {
	resCh := make(chan textResult, 1)
	go func() {
		text, err := run.Text(ctx)
		resCh <- textResult{text: text, err: err}
	}()

	deliver := func(ev Event) {
		if onEvent != nil {
			onEvent(ev)
		}
	}

	events := run.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			deliver(ev)

		case res := <-resCh:
			drain(ctx, events, deliver)
			return res.text, res.err

		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func drain(ctx context.Context, events <-chan Event, deliver func(Event)) {
	if events == nil {
		return
	}
	timer := time.NewTimer(eventDrainGrace)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			deliver(ev)
		case <-timer.C:
			return
		case <-ctx.Done():
			return
		}
	}
}
