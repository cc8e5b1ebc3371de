// Package engine defines the run engine capability consumed by chat sessions.
//
// A Client starts runs from a set of tool definitions. A Run produces the full
// text of one turn, reports whether it accepts further input, and exposes its
// lifecycle events as a channel that is closed when the turn ends.
package engine

import (
	"context"
	"errors"

	"github.com/bhandras/kubechat/internal/tools"
	"github.com/bhandras/kubechat/shared/wire"
)

// ErrNotContinuable is returned by Run.NextChat when the run no longer accepts
// input.
var ErrNotContinuable = errors.New("run does not accept further input")

// RunState is the engine-reported state of a run.
type RunState string

const (
	// StateCreating means the run has been requested but not started.
	StateCreating RunState = "creating"
	// StateRunning means the turn is executing.
	StateRunning RunState = "running"
	// StateContinue means the turn finished and the run accepts more input.
	StateContinue RunState = "continue"
	// StateFinished means the run is done and accepts no more input.
	StateFinished RunState = "finished"
	// StateError means the run failed.
	StateError RunState = "error"
)

// AcceptsInput reports whether a run in this state can take another turn.
func (s RunState) AcceptsInput() bool {
	return s == StateContinue
}

// EventKind identifies a forwarded lifecycle event.
type EventKind string

const (
	// EventCallContinue fires when a tool call resumes after a sub-call.
	EventCallContinue EventKind = "callContinue"
	// EventCallProgress fires as a tool call streams output.
	EventCallProgress EventKind = "callProgress"
	// EventCallFinish fires when a tool call completes.
	EventCallFinish EventKind = "callFinish"
)

// Event is a lifecycle event emitted by a run.
type Event struct {
	// Kind is the lifecycle event kind.
	Kind EventKind
	// Data is the engine payload, forwarded to clients unchanged. It must be
	// JSON serializable.
	Data any
}

// Run is a handle to one turn of an engine execution.
type Run interface {
	// Text blocks until the turn completes and returns its full output.
	Text(ctx context.Context) (string, error)
	// State reports the current run state.
	State() RunState
	// NextChat starts the next turn seeded with this run's context.
	NextChat(ctx context.Context, input string) (Run, error)
	// Events returns the lifecycle events of this turn. The channel is closed
	// once the turn ends. Implementations must not block indefinitely when the
	// consumer stops reading after Close.
	Events() <-chan Event
	// Close stops the run if it is still executing and releases resources.
	Close() error
}

// Client starts runs.
type Client interface {
	// Evaluate starts a run of defs, the first definition being the
	// entrypoint, with opts.Input as the user input.
	Evaluate(ctx context.Context, defs []tools.Definition, opts wire.RunOptions) (Run, error)
	// Close releases the client.
	Close() error
}
