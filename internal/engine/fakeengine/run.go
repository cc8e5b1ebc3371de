package fakeengine

import (
	"context"
	"errors"
	"sync"

	"github.com/bhandras/kubechat/internal/engine"
)

var errRunClosed = errors.New("fake run closed")

// Run implements engine.Run.
type Run struct {
	client *Client
	call   Call

	events chan engine.Event
	done   chan struct{}
	stop   chan struct{}

	stopOnce sync.Once

	mu    sync.Mutex
	state engine.RunState
	text  string
	err   error
}

func (r *Run) play(ctx context.Context, turn Turn) {
	defer close(r.done)

	if turn.Gate != nil {
		select {
		case <-turn.Gate:
		case <-r.stop:
			r.finish("", errRunClosed, false)
			close(r.events)
			return
		case <-ctx.Done():
			r.finish("", ctx.Err(), false)
			close(r.events)
			return
		}
	}

	// The channel is sized to hold every scripted event.
	for _, ev := range turn.Events {
		r.events <- ev
	}
	close(r.events)

	r.finish(turn.Text, turn.Err, turn.Finished)
}

func (r *Run) finish(text string, err error, finished bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = text
	r.err = err
	switch {
	case err != nil:
		r.state = engine.StateError
	case finished:
		r.state = engine.StateFinished
	default:
		r.state = engine.StateContinue
	}
}

// Text implements engine.Run.
func (r *Run) Text(ctx context.Context) (string, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text, r.err
}

// State implements engine.Run.
func (r *Run) State() engine.RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// NextChat implements engine.Run.
func (r *Run) NextChat(ctx context.Context, input string) (engine.Run, error) {
	if !r.State().AcceptsInput() {
		return nil, engine.ErrNotContinuable
	}

	r.client.mu.Lock()
	r.client.nextChats++
	r.client.mu.Unlock()

	next := r.call
	next.Turn++
	next.Input = input
	return r.client.start(ctx, next), nil
}

// Events implements engine.Run.
func (r *Run) Events() <-chan engine.Event {
	return r.events
}

// Close implements engine.Run.
func (r *Run) Close() error {
	r.stopOnce.Do(func() { close(r.stop) })
	return nil
}
