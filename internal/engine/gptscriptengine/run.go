package gptscriptengine

import (
	"context"
	"sync"

	"github.com/bhandras/kubechat/internal/engine"
	"github.com/gptscript-ai/go-gptscript"
)

// eventBuffer sizes the translated event channel.
const eventBuffer = 64

// forwardedKinds maps GPTScript call frame types onto forwarded event kinds.
// Other frame types are dropped.
var forwardedKinds = map[string]engine.EventKind{
	"callContinue": engine.EventCallContinue,
	"callProgress": engine.EventCallProgress,
	"callFinish":   engine.EventCallFinish,
}

type run struct {
	r *gptscript.Run

	events chan engine.Event
	stop   chan struct{}

	stopOnce sync.Once
	textOnce sync.Once
	textDone chan struct{}
	text     string
	textErr  error
}

func newRun(r *gptscript.Run) *run {
	out := &run{
		r:        r,
		events:   make(chan engine.Event, eventBuffer),
		stop:     make(chan struct{}),
		textDone: make(chan struct{}),
	}
	go out.translate()
	return out
}

// translate converts SDK frames into engine events until the SDK closes its
// channel or the run is closed.
func (r *run) translate() {
	defer close(r.events)
	for frame := range r.r.Events() {
		if frame.Call == nil {
			continue
		}
		kind, ok := forwardedKinds[string(frame.Call.Type)]
		if !ok {
			continue
		}
		select {
		case r.events <- engine.Event{Kind: kind, Data: frame.Call}:
		case <-r.stop:
			return
		}
	}
}

// Text implements engine.Run.
func (r *run) Text(ctx context.Context) (string, error) {
	r.textOnce.Do(func() {
		go func() {
			defer close(r.textDone)
			r.text, r.textErr = r.r.Text()
		}()
	})

	select {
	case <-r.textDone:
		return r.text, r.textErr
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// State implements engine.Run.
func (r *run) State() engine.RunState {
	// The SDK run states use the same names.
	return engine.RunState(r.r.State())
}

// NextChat implements engine.Run.
func (r *run) NextChat(ctx context.Context, input string) (engine.Run, error) {
	if !r.State().AcceptsInput() {
		return nil, engine.ErrNotContinuable
	}
	next, err := r.r.NextChat(ctx, input)
	if err != nil {
		return nil, err
	}
	return newRun(next), nil
}

// Events implements engine.Run.
func (r *run) Events() <-chan engine.Event {
	return r.events
}

// Close implements engine.Run.
func (r *run) Close() error {
	r.stopOnce.Do(func() { close(r.stop) })
	return r.r.Close()
}
