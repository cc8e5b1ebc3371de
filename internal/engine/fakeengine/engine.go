// Package fakeengine provides an in-memory implementation of engine.Client.
//
// This exists to support deterministic tests and UI development without a
// GPTScript installation or model credentials.
package fakeengine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bhandras/kubechat/internal/engine"
	"github.com/bhandras/kubechat/internal/tools"
	"github.com/bhandras/kubechat/shared/wire"
	"github.com/google/uuid"
)

const (
	// fakeAgentReplyPrefix is the prefix used in the default reply body.
	fakeAgentReplyPrefix = "fake-agent: "
	// fakeAgentExitInput finishes the run under the default script.
	fakeAgentExitInput = "bye"
)

// Call describes one turn request seen by the fake engine.
type Call struct {
	// RunID identifies the run chain the turn belongs to.
	RunID string
	// Turn is 0 for the initial evaluation and increments per NextChat.
	Turn int
	// Input is the turn input.
	Input string
	// Tools are the definitions passed to Evaluate (shared by the chain).
	Tools []tools.Definition
	// Options are the run options passed to Evaluate.
	Options wire.RunOptions
}

// Turn scripts the outcome of a single call.
type Turn struct {
	// Text is the full text result.
	Text string
	// Err fails the turn.
	Err error
	// Events are emitted, in order, before the text resolves.
	Events []engine.Event
	// Finished makes the run stop accepting input after this turn.
	Finished bool
	// Gate, when non-nil, holds the turn open until it is closed.
	Gate <-chan struct{}
}

// ScriptFunc decides how a call plays out.
type ScriptFunc func(call Call) Turn

// DefaultScript echoes the input with a progress event for each turn and
// finishes the run when the input is "bye".
func DefaultScript(call Call) Turn {
	text := strings.TrimSpace(call.Input)
	return Turn{
		Text: fakeAgentReplyPrefix + text,
		Events: []engine.Event{
			{Kind: engine.EventCallProgress, Data: map[string]any{
				"id":      fmt.Sprintf("%s/%d", call.RunID, call.Turn),
				"content": text,
			}},
			{Kind: engine.EventCallFinish, Data: map[string]any{
				"id": fmt.Sprintf("%s/%d", call.RunID, call.Turn),
			}},
		},
		Finished: strings.EqualFold(text, fakeAgentExitInput),
	}
}

// Client implements engine.Client.
type Client struct {
	mu sync.Mutex

	script      ScriptFunc
	evaluateErr error
	calls       []Call
	evaluations int
	nextChats   int
	closed      bool
}

// Option configures a fake client.
type Option func(*Client)

// WithScript replaces DefaultScript.
func WithScript(script ScriptFunc) Option {
	return func(c *Client) { c.script = script }
}

// WithEvaluateError makes every Evaluate call fail synchronously.
func WithEvaluateError(err error) Option {
	return func(c *Client) { c.evaluateErr = err }
}

// New returns a new fake client.
func New(opts ...Option) *Client {
	c := &Client{script: DefaultScript}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Evaluate implements engine.Client.
func (c *Client) Evaluate(ctx context.Context, defs []tools.Definition, opts wire.RunOptions) (engine.Run, error) {
	c.mu.Lock()
	c.evaluations++
	err := c.evaluateErr
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return nil, fmt.Errorf("fake engine is closed")
	}
	if err != nil {
		return nil, err
	}

	return c.start(ctx, Call{
		RunID:   uuid.NewString(),
		Input:   opts.Input,
		Tools:   defs,
		Options: opts,
	}), nil
}

// Close implements engine.Client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Evaluations returns how many runs were started with Evaluate.
func (c *Client) Evaluations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluations
}

// NextChats returns how many continuation turns were started.
func (c *Client) NextChats() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextChats
}

// Calls returns a copy of every call seen so far.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *Client) start(ctx context.Context, call Call) *Run {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	script := c.script
	c.mu.Unlock()

	turn := script(call)
	r := &Run{
		client: c,
		call:   call,
		events: make(chan engine.Event, len(turn.Events)),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
		state:  engine.StateRunning,
	}
	go r.play(ctx, turn)
	return r
}
